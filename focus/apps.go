package focus

import "strings"

// nativeApps maps lowercase process names to app ids.
var nativeApps = map[string]string{
	"code":              "vscode",
	"code.exe":          "vscode",
	"code - insiders":   "vscode",
	"cursor":            "cursor",
	"cursor.exe":        "cursor",
	"slack":             "slack",
	"slack.exe":         "slack",
	"discord":           "discord",
	"discord.exe":       "discord",
	"notion":            "notion",
	"notion.exe":        "notion",
	"obsidian":          "obsidian",
	"obsidian.exe":      "obsidian",
	"outlook":           "outlook",
	"outlook.exe":       "outlook",
	"microsoft outlook": "outlook",
	"mail":              "apple_mail",
	"messages":          "imessage",
	"whatsapp":          "whatsapp",
	"whatsapp.exe":      "whatsapp",
	"telegram":          "telegram",
	"telegram.exe":      "telegram",
	"linear":            "linear",
	"linear.exe":        "linear",
	"teams":             "teams",
	"teams.exe":         "teams",
	"microsoft teams":   "teams",
}

var browsers = map[string]bool{
	"chrome":         true,
	"chrome.exe":     true,
	"google chrome":  true,
	"msedge":         true,
	"msedge.exe":     true,
	"microsoft edge": true,
	"firefox":        true,
	"firefox.exe":    true,
	"safari":         true,
	"arc":            true,
	"brave":          true,
	"brave.exe":      true,
	"opera":          true,
	"opera.exe":      true,
	"vivaldi":        true,
	"vivaldi.exe":    true,
}

// titleRule matches a lowercase browser window title: one of any must appear,
// and one of require too when it is set.
type titleRule struct {
	appID   string
	any     []string
	require []string
}

// Checked in order; the first match wins.
var titleRules = []titleRule{
	{appID: "gmail", any: []string{"gmail", "inbox - "}},
	{appID: "outlook_web", any: []string{"outlook"}, require: []string{"mail", "inbox"}},
	{appID: "slack_web", any: []string{"slack"}},
	{appID: "discord_web", any: []string{"discord"}},
	{appID: "chatgpt", any: []string{"chatgpt", "chat.openai"}},
	{appID: "claude", any: []string{"claude"}},
	{appID: "notion_web", any: []string{"notion"}},
	{appID: "linkedin", any: []string{"linkedin"}},
	{appID: "twitter", any: []string{"twitter", " x ", "x.com", "/ x"}},
	{appID: "github", any: []string{"github"}},
	{appID: "linear_web", any: []string{"linear"}},
	{appID: "whatsapp_web", any: []string{"whatsapp"}},
	{appID: "telegram_web", any: []string{"telegram"}},
	{appID: "teams_web", any: []string{"teams"}},
}

var domains = map[string]string{
	"mail.google.com":       "gmail",
	"outlook.office.com":    "outlook_web",
	"outlook.live.com":      "outlook_web",
	"outlook.office365.com": "outlook_web",
	"app.slack.com":         "slack_web",
	"slack.com":             "slack_web",
	"discord.com":           "discord_web",
	"web.whatsapp.com":      "whatsapp_web",
	"web.telegram.org":      "telegram_web",
	"chat.openai.com":       "chatgpt",
	"chatgpt.com":           "chatgpt",
	"claude.ai":             "claude",
	"notion.so":             "notion_web",
	"www.notion.so":         "notion_web",
	"www.linkedin.com":      "linkedin",
	"linkedin.com":          "linkedin",
	"twitter.com":           "twitter",
	"x.com":                 "twitter",
	"github.com":            "github",
	"www.github.com":        "github",
	"linear.app":            "linear_web",
	"teams.microsoft.com":   "teams_web",
}

var defaultStyles = map[string]string{
	"gmail":        "email_pro",
	"outlook":      "email_pro",
	"outlook_web":  "email_pro",
	"apple_mail":   "email_pro",
	"slack":        "chat",
	"slack_web":    "chat",
	"discord":      "chat",
	"discord_web":  "chat",
	"whatsapp":     "chat",
	"whatsapp_web": "chat",
	"telegram":     "chat",
	"telegram_web": "chat",
	"imessage":     "chat",
	"teams":        "chat",
	"teams_web":    "chat",
	"vscode":       "code",
	"cursor":       "code",
	"jetbrains":    "code",
	"notion":       "notes",
	"notion_web":   "notes",
	"obsidian":     "notes",
	"chatgpt":      "ai_assistant",
	"claude":       "ai_assistant",
	"linkedin":     "social_pro",
	"twitter":      "social_casual",
	"github":       "dev_tools",
	"linear":       "dev_tools",
	"linear_web":   "dev_tools",
}

var displayNames = map[string]string{
	"gmail":        "Gmail",
	"outlook":      "Outlook",
	"outlook_web":  "Outlook",
	"apple_mail":   "Apple Mail",
	"slack":        "Slack",
	"slack_web":    "Slack",
	"discord":      "Discord",
	"discord_web":  "Discord",
	"vscode":       "VS Code",
	"cursor":       "Cursor",
	"chatgpt":      "ChatGPT",
	"claude":       "Claude",
	"notion":       "Notion",
	"notion_web":   "Notion",
	"obsidian":     "Obsidian",
	"linkedin":     "LinkedIn",
	"twitter":      "Twitter/X",
	"whatsapp":     "WhatsApp",
	"whatsapp_web": "WhatsApp",
	"telegram":     "Telegram",
	"telegram_web": "Telegram",
	"github":       "GitHub",
	"linear":       "Linear",
	"linear_web":   "Linear",
	"teams":        "Microsoft Teams",
	"teams_web":    "Microsoft Teams",
	"imessage":     "iMessage",
}

// NativeApp returns the app id for a desktop application process.
func NativeApp(process string) (string, bool) {
	id, ok := nativeApps[strings.ToLower(process)]
	return id, ok
}

// IsBrowser reports whether process is a known web browser.
func IsBrowser(process string) bool {
	return browsers[strings.ToLower(process)]
}

// AppFromTitle guesses the web app shown in a browser window from its title.
func AppFromTitle(title string) (string, bool) {
	title = strings.ToLower(title)
	for _, r := range titleRules {
		if containsAny(title, r.any) && (len(r.require) == 0 || containsAny(title, r.require)) {
			return r.appID, true
		}
	}
	return "", false
}

// AppFromDomain returns the app id for a page domain.
func AppFromDomain(domain string) (string, bool) {
	id, ok := domains[domain]
	return id, ok
}

// DefaultStyle returns the built-in context style for an app id.
func DefaultStyle(appID string) (string, bool) {
	s, ok := defaultStyles[appID]
	return s, ok
}

// DisplayName returns a human-readable name for an app id. Unknown ids are
// returned unchanged.
func DisplayName(appID string) string {
	if name, ok := displayNames[appID]; ok {
		return name
	}
	return appID
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
