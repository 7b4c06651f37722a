package templates

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// InviteCode is the content of an invite code email
type InviteCode struct {
	HostName   string
	EventName  string
	EventDate  time.Time
	Location   string
	InviteCode string
}

// InviteCodeSubject is the subject line of an invite code email
func InviteCodeSubject(inv InviteCode) string {
	if inv.HostName == "" {
		return fmt.Sprintf("You're invited to %s", inv.EventName)
	}
	return fmt.Sprintf("%s invited you to %s", inv.HostName, inv.EventName)
}

// RenderInviteCodeEmail generates the HTML body of an invite code email
func RenderInviteCodeEmail(inv InviteCode) string {
	var b strings.Builder
	b.WriteString("<p>Enter this code in the app to join the guest list:</p>\n")
	fmt.Fprintf(&b, "      <div class=\"code\">%s</div>\n", html.EscapeString(inv.InviteCode))
	b.WriteString("      <table class=\"details\">\n")
	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "        <tr><td>%s</td><td class=\"value\">%s</td></tr>\n", label, html.EscapeString(value))
	}
	row("Event", inv.EventName)
	if !inv.EventDate.IsZero() {
		row("When", formatDate(inv.EventDate))
	}
	row("Where", inv.Location)
	row("Host", inv.HostName)
	b.WriteString("      </table>")
	return renderLayout(InviteCodeSubject(inv), b.String())
}

// RenderInviteCodeText is the plain text alternative of RenderInviteCodeEmail
func RenderInviteCodeText(inv InviteCode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nInvite code: %s\n", InviteCodeSubject(inv), inv.InviteCode)
	if !inv.EventDate.IsZero() {
		fmt.Fprintf(&b, "When: %s\n", formatDate(inv.EventDate))
	}
	if inv.Location != "" {
		fmt.Fprintf(&b, "Where: %s\n", inv.Location)
	}
	return b.String()
}

func formatDate(t time.Time) string {
	return t.UTC().Format("Mon, Jan 2 2006 at 15:04 MST")
}
