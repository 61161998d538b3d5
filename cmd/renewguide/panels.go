package main

import "strings"

type tabID int

const (
	tabDashboard tabID = iota
	tabChatbot
	tabVisualization
	tabMLPrediction
	tabPolicy
	tabUsers
)

const tabCount = 6

type panelInfo struct {
	id    tabID
	key   string
	label string
}

var panels = []panelInfo{
	{tabDashboard, "dashboard", "Dashboard"},
	{tabChatbot, "chatbot", "AI Chatbot"},
	{tabVisualization, "visualization", "Generation Charts"},
	{tabMLPrediction, "ml-prediction", "ML Prediction"},
	{tabPolicy, "policy", "Policy & Programs"},
	{tabUsers, "users", "User Management"},
}

// panelFromKey maps a panel key to its tab. Unknown keys land on the dashboard.
func panelFromKey(key string) tabID {
	normalized := strings.ToLower(strings.TrimSpace(key))
	for _, p := range panels {
		if p.key == normalized {
			return p.id
		}
	}
	return tabDashboard
}

func (t tabID) valid() bool {
	return t >= 0 && int(t) < tabCount
}

func (t tabID) info() panelInfo {
	if !t.valid() {
		return panels[tabDashboard]
	}
	return panels[t]
}

type statCard struct {
	label string
	value string
}

var dashboardCards = []statCard{
	{"Solar output", "2,847 MW"},
	{"Wind output", "1,234 MW"},
	{"Chatbot conversations", "156"},
	{"ML prediction accuracy", "89%"},
}

var recentActivity = []string{
	"Solar plant data updated",
	"ML model retraining finished",
	"New policy information added",
}

type staticPanel struct {
	title    string
	subtitle string
	section  string
	lines    []string
}

var staticPanels = map[tabID]staticPanel{
	tabVisualization: {
		title:    "Generation Charts",
		subtitle: "Live generation data and charts",
		section:  "Chart area",
		lines:    []string{"Generation charts will be displayed here."},
	},
	tabMLPrediction: {
		title:    "ML Prediction",
		subtitle: "Machine-learning based generation forecasts",
		section:  "Prediction results",
		lines:    []string{"ML prediction results will be displayed here."},
	},
	tabPolicy: {
		title:    "Policy & Programs",
		subtitle: "Renewable energy policy and support programs",
		section:  "Policy information",
		lines: []string{
			"Renewable Energy 3020 plan",
			"  Reach a 20% renewable share by 2030",
			"",
			"Solar power support program",
			"  Support for building and operating solar plants",
		},
	},
	tabUsers: {
		title:    "User Management",
		subtitle: "System users and permission settings",
		section:  "Users",
		lines: []string{
			"Administrator    admin@example.com    admin",
			"Regular user     user@example.com     user",
		},
	},
}
