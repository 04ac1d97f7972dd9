package models

import "github.com/AnshRaj112/planpal-backend/internal/profile"

type Link struct {
	Name string `json:"name"`
	Href string `json:"href"`
}

// DashboardLinks are the feature areas reachable from the dashboard.
var DashboardLinks = []Link{
	{Name: "Voting", Href: "/voting"},
	{Name: "Expenses", Href: "/expenses"},
	{Name: "Suggestions", Href: "/suggestions"},
}

type DashboardResponse struct {
	User    profile.EffectiveUser `json:"user"`
	Links   []Link                `json:"links"`
	Message string                `json:"message,omitempty"`
}
