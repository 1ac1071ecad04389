package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/models"
)

// Mailer sends transactional email through an HTTP mail API. Sending is
// best-effort: when the API is unconfigured every call is a silent no-op.
type Mailer struct {
	apiURL     string
	apiKey     string
	from       string
	adminEmail string
	client     *http.Client
	log        *zap.Logger
}

// NewMailer constructs a Mailer.
func NewMailer(apiURL, apiKey, from, adminEmail string, logger *zap.Logger) *Mailer {
	return &Mailer{
		apiURL:     strings.TrimRight(apiURL, "/"),
		apiKey:     apiKey,
		from:       from,
		adminEmail: adminEmail,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        logger,
	}
}

type mailMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Send delivers one message. Returns nil without sending when unconfigured.
func (m *Mailer) Send(to, subject, html string) error {
	if m.apiURL == "" || m.apiKey == "" {
		m.log.Debug("mail api not configured, skipping send", zap.String("subject", subject))
		return nil
	}
	if to == "" {
		return nil
	}

	body, err := json.Marshal(mailMessage{
		From:    m.from,
		To:      to,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, m.apiURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		m.log.Warn("mail send failed", zap.String("to", to), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.log.Warn("mail api unexpected status", zap.String("to", to), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("mail api returned status %d", resp.StatusCode)
	}

	return nil
}

// sendAsync fires a send in the background so responses never block on mail.
func (m *Mailer) sendAsync(kind, to, subject, html string) {
	go func() {
		if err := m.Send(to, subject, html); err != nil {
			m.log.Warn("async mail failed", zap.String("kind", kind), zap.Error(err))
			return
		}
		metrics.EmailsSent.WithLabelValues(kind).Inc()
	}()
}

// SendVerification emails the address-confirmation link to a new user.
func (m *Mailer) SendVerification(user *models.User, frontendURL string) {
	link := fmt.Sprintf("%s/verify-email?token=%s", strings.TrimRight(frontendURL, "/"), user.VerifyToken)
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Welcome! Please confirm your email address by clicking the link below:</p>
<p><a href="%s">Verify my email</a></p>`, user.FirstName, link)

	m.sendAsync("verification", user.Email, "Confirm your email address", html)
}

// SendPasswordReset emails a reset link. The token is single-use.
func (m *Mailer) SendPasswordReset(email, token, frontendURL string) {
	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(frontendURL, "/"), token)
	html := fmt.Sprintf(`<p>A password reset was requested for your account.</p>
<p><a href="%s">Reset my password</a></p>
<p>If you did not request this, you can ignore this email.</p>`, link)

	m.sendAsync("password_reset", email, "Reset your password", html)
}

// SendOrderConfirmation emails the customer after a successful checkout.
func (m *Mailer) SendOrderConfirmation(order *models.Order) {
	var lines strings.Builder
	for _, item := range order.Items {
		lines.WriteString(fmt.Sprintf("<li>%s &times; %d &mdash; %s %s</li>",
			item.ProductName, item.Quantity, item.LineTotal.StringFixed(2), order.Currency))
	}

	html := fmt.Sprintf(`<p>Thank you for your order <b>%s</b>!</p>
<ul>%s</ul>
<p>Total: <b>%s %s</b></p>
<p>We will let you know as soon as it ships.</p>`,
		order.OrderNumber, lines.String(), order.TotalAmount.StringFixed(2), order.Currency)

	m.sendAsync("order_confirmation", order.CustomerEmail(), fmt.Sprintf("Order %s confirmed", order.OrderNumber), html)
}

// SendOrderStatus emails the customer when an order ships or is delivered.
func (m *Mailer) SendOrderStatus(order *models.Order) {
	subject := fmt.Sprintf("Order %s is now %s", order.OrderNumber, order.Status)
	html := fmt.Sprintf(`<p>Your order <b>%s</b> is now <b>%s</b>.</p>`, order.OrderNumber, order.Status)

	m.sendAsync("order_status", order.CustomerEmail(), subject, html)
}

// SendContactNotification forwards a support message to the shop admin.
func (m *Mailer) SendContactNotification(msg *models.ContactMessage) {
	if m.adminEmail == "" {
		return
	}

	html := fmt.Sprintf(`<p><b>From:</b> %s &lt;%s&gt;</p>
<p><b>Subject:</b> %s</p>
<p>%s</p>`, msg.Name, msg.Email, msg.Subject, msg.Message)

	m.sendAsync("contact", m.adminEmail, "New contact form message", html)
}
