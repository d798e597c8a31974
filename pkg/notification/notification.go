package notification

import "fmt"

// NoticeType identifies what a notification is about.
type NoticeType string

const (
	VerificationCodeNotice NoticeType = "verification_code"
	NewDeviceNotice        NoticeType = "new_device"
)

// NotificationData carries the recipient and the template variables.
type NotificationData struct {
	To   string
	Data map[string]string
}

// NoticeTemplate holds the renderable parts of a notice.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// Notifier delivers a rendered notice to a recipient.
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}

// Manager routes notices to the registered notifier using the registered
// template for the notice type.
type Manager struct {
	notifier  Notifier
	templates map[NoticeType]NoticeTemplate
}

// NewManager creates a notification manager backed by the given notifier.
func NewManager(notifier Notifier) *Manager {
	return &Manager{
		notifier:  notifier,
		templates: make(map[NoticeType]NoticeTemplate),
	}
}

// RegisterTemplate adds or replaces the template for a notice type.
func (m *Manager) RegisterTemplate(noticeType NoticeType, template NoticeTemplate) error {
	if noticeType == "" {
		return fmt.Errorf("invalid input: notice type cannot be empty")
	}
	m.templates[noticeType] = template
	return nil
}

// Send delivers a notice of the given type.
func (m *Manager) Send(noticeType NoticeType, notification NotificationData) error {
	template, exists := m.templates[noticeType]
	if !exists {
		return fmt.Errorf("no template registered for notice type: %s", noticeType)
	}
	if m.notifier == nil {
		return fmt.Errorf("no notifier registered")
	}
	return m.notifier.Send(noticeType, notification, template)
}

// DefaultTemplates returns the built-in templates for the login
// verification notices.
func DefaultTemplates() map[NoticeType]NoticeTemplate {
	return map[NoticeType]NoticeTemplate{
		VerificationCodeNotice: {
			Subject: "Your verification code",
			Text:    "Your verification code is {{.code}}. It expires in {{.expires_in}}.",
			Html:    "<p>Your verification code is <b>{{.code}}</b>. It expires in {{.expires_in}}.</p>",
		},
		NewDeviceNotice: {
			Subject: "New sign-in to your account",
			Text:    "A new device signed in to your account from {{.device_info}}.",
		},
	}
}
