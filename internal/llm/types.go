package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image is an inline binary attachment sent alongside a message.
type Image struct {
	MIMEType string
	Data     []byte
}

// Message represents a single message in a conversation. Images are only
// honored on user messages.
type Message struct {
	Role    Role
	Content string
	Images  []Image
}

// SchemaType is the JSON type of a schema node.
type SchemaType string

const (
	TypeObject SchemaType = "object"
	TypeString SchemaType = "string"
)

// Schema is the subset of JSON Schema used to request structured output.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// CompletionRequest contains the parameters for an LLM completion request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
	// Schema constrains the reply when the provider supports structured
	// output. Providers without support fall back to JSONMode.
	Schema *Schema
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}
