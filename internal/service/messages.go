package service

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var codeEmailTemplate = template.Must(template.New("code").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933;">
  <h2>{{.Title}}</h2>
  <p>{{.Intro}}</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
  <p>The code is valid for {{.Minutes}} minutes. If you did not request it, ignore this message.</p>
  <p>DockMap</p>
</body>
</html>`))

type codeEmail struct {
	Title   string
	Intro   string
	Code    string
	Minutes int
}

func smsCodeText(code string) string {
	return fmt.Sprintf("DockMap: your verification code is %s", code)
}

func renderCodeEmail(title, intro, code string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	err := codeEmailTemplate.Execute(&buf, codeEmail{
		Title:   title,
		Intro:   intro,
		Code:    code,
		Minutes: int(ttl.Minutes()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

func passwordResetEmail(code string, ttl time.Duration) (string, string, error) {
	html, err := renderCodeEmail("Password reset", "Use this code to set a new password:", code, ttl)
	return "DockMap password reset code", html, err
}

func emailVerificationEmail(code string, ttl time.Duration) (string, string, error) {
	html, err := renderCodeEmail("Confirm your email", "Use this code to confirm your email address:", code, ttl)
	return "DockMap email confirmation code", html, err
}
