package templates

import (
	"fmt"
	"html"
)

// renderLayout wraps already escaped htmlBody in the branded layout
func renderLayout(subject, htmlBody string) string {
	safeSubject := html.EscapeString(subject)

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>%s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #0b0b14; }
    .container { max-width: 600px; margin: 0 auto; background-color: #15151f; }
    .header { background: linear-gradient(135deg, #f97316 0%%, #db2777 100%%); padding: 36px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 36px 30px; color: #e5e7eb; line-height: 1.6; font-size: 15px; }
    .code { display: inline-block; margin: 16px 0; padding: 14px 28px; border-radius: 10px; background-color: #26263a; color: #fff; font-size: 32px; font-weight: 700; letter-spacing: 8px; font-family: 'Courier New', monospace; }
    .details td { padding: 4px 12px 4px 0; color: #9ca3af; }
    .details td.value { color: #e5e7eb; }
    .footer { padding: 24px 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid rgba(255,255,255,0.1); }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="content">
      %s
    </div>
    <div class="footer">
      <p>You received this email because a host shared an event with you. Ignore it if you were not expecting an invite.</p>
    </div>
  </div>
</body>
</html>`, safeSubject, safeSubject, htmlBody)
}
