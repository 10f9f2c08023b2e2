package domain

// ModelDefinition is one configured chat-completion endpoint: where it lives,
// how to authenticate, and how its wire format deviates from the
// OpenAI-compatible baseline.
type ModelDefinition struct {
	Name       string          `yaml:"name"`
	Endpoint   string          `yaml:"endpoint"`
	AuthEnvVar string          `yaml:"auth_env_var"`
	OrgEnvVar  string          `yaml:"org_env_var"`
	ModelID    string          `yaml:"model_id"`
	MaxTokens  int             `yaml:"max_tokens"`
	Prompt     []PromptMessage `yaml:"prompt"`
	APIFormat  APIFormat       `yaml:"api_format,omitempty"`
}

// PromptMessage is a role/content pair as chat APIs expect it.
type PromptMessage struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

// APIFormat declares per-provider wire-format quirks. The zero value is the
// OpenAI-compatible shape: Bearer auth, system prompt inline in the messages
// array, plain string content, reply at choices[0].message.content. Anthropic
// needs x-api-key auth with no prefix, a separate top-level system field,
// content wrapped in a typed array, and the reply at content[0].text.
type APIFormat struct {
	AuthHeaderName    string            `yaml:"auth_header_name,omitempty"`
	AuthHeaderPrefix  string            `yaml:"auth_header_prefix,omitempty"`
	SystemMessageMode string            `yaml:"system_message_mode,omitempty"`
	ContentWrapper    string            `yaml:"content_wrapper,omitempty"`
	ResponseJSONPath  string            `yaml:"response_json_path,omitempty"`
	ExtraHeaders      map[string]string `yaml:"extra_headers,omitempty"`
}

const (
	SystemMessageModeInline   = "inline"
	SystemMessageModeSeparate = "separate"

	ContentWrapperStandard  = "standard"
	ContentWrapperAnthropic = "anthropic"

	defaultResponsePath = "choices[0].message.content"
)

// AuthHeader resolves the header name and prefix to use for the given key. A
// custom header name with an empty prefix is taken literally (x-api-key style);
// only the fully-default case gets the Bearer prefix.
func (f APIFormat) AuthHeader() (name, prefix string) {
	name = f.AuthHeaderName
	prefix = f.AuthHeaderPrefix
	if name == "" {
		name = "Authorization"
		if prefix == "" {
			prefix = "Bearer "
		}
	}
	return name, prefix
}

// SystemSeparate reports whether the system prompt goes in its own field
// rather than the messages array.
func (f APIFormat) SystemSeparate() bool {
	return f.SystemMessageMode == SystemMessageModeSeparate
}

// WrapsContent reports whether message content must be wrapped in a typed
// text-block array.
func (f APIFormat) WrapsContent() bool {
	return f.ContentWrapper == ContentWrapperAnthropic
}

// ReplyPath returns the JSON path of the assistant reply in the response body.
func (f APIFormat) ReplyPath() string {
	if f.ResponseJSONPath == "" {
		return defaultResponsePath
	}
	return f.ResponseJSONPath
}
