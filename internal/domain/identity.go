package domain

// Identity is the canonical result of a provider resolver.
// The lookup key depends on the provider: Phone for SMS, ProviderID for Telegram and VK, Email for email.
type Identity struct {
	Provider    AuthProvider
	Phone       string
	ProviderID  string
	Email       string
	DisplayName string
	Username    string
}
