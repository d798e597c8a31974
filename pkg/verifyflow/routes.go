package verifyflow

import "github.com/fleetdesk/loginverify/pkg/verifyapi"

// Route pairs a navigable path with the permission key that gates it.
type Route struct {
	Path       string
	Permission string
}

// DefaultRoutes lists the back-office screens in navigation order.
var DefaultRoutes = []Route{
	{Path: "/loads", Permission: "loads.view"},
	{Path: "/drivers", Permission: "drivers.view"},
	{Path: "/dispatchers", Permission: "dispatchers.view"},
	{Path: "/invoices", Permission: "invoices.view"},
	{Path: "/driver-pay", Permission: "driverpay.view"},
	{Path: "/relay-payments", Permission: "relaypayments.view"},
	{Path: "/companies", Permission: "companies.view"},
}

// FallbackRoute is where a user with no granted routes lands.
const FallbackRoute = "/login"

// FirstAllowedRoute returns the first route the permission map grants, or
// FallbackRoute when none is granted.
func FirstAllowedRoute(perms verifyapi.Permissions, routes []Route) string {
	for _, route := range routes {
		if perms[route.Permission] {
			return route.Path
		}
	}
	return FallbackRoute
}
