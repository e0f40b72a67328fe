package domain

// EmailMessage is a fully assembled plain-text email.
type EmailMessage struct {
	Sender     EmailSender
	Recipients []string
	Subject    string
	Body       string
}

// SnippetScopeType names what a snippet is attached to.
type SnippetScopeType string

const (
	SnippetScopeBrand SnippetScopeType = "brand"
	SnippetScopeShop  SnippetScopeType = "shop"
)

// SnippetKey addresses a localized text fragment.
type SnippetKey struct {
	ScopeType SnippetScopeType
	ScopeID   string
	Name      string
	Locale    string
}

// Snippet is an authored text fragment.
type Snippet struct {
	SnippetKey
	Body string
}
