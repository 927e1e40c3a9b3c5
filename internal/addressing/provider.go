package addressing

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gopkg.in/yaml.v3"
)

// Address type tags of the built-in providers.
const (
	TypeMail    = "mail"
	TypePhone   = "phone"
	TypePush    = "push"
	TypeLoop    = "loop"
	TypeKeyword = "keyword"
)

// Provider parses and serializes one address type's payload.
// A Parse error marks a single malformed item, never the whole book.
type Provider interface {
	// AddressType is the tag identifying payloads owned by this provider.
	AddressType() string
	// Parse decodes a raw book element into the typed payload.
	Parse(node *yaml.Node) (any, error)
	// Serialize encodes a typed payload back into a raw book element.
	Serialize(data any) (*yaml.Node, error)
}

// ReceiptType selects how a mail recipient is addressed.
type ReceiptType string

const (
	ReceiptTo  ReceiptType = "to"
	ReceiptCC  ReceiptType = "cc"
	ReceiptBCC ReceiptType = "bcc"
)

// MailAddress is the payload of a "mail" data item.
type MailAddress struct {
	Address string      `yaml:"address"`
	Receipt ReceiptType `yaml:"receipt"`
}

// Phone is the payload of a "phone" data item.
type Phone struct {
	Number string `yaml:"number"`
}

// Push is the payload of a "push" data item.
type Push struct {
	// Consumer tags the push gateway this recipient is registered with.
	Consumer string `yaml:"consumer"`
	// APIKey identifies the recipient at the gateway.
	APIKey string `yaml:"api_key"`
}

// Loop is the payload of a "loop" data item. Entries carrying a loop code
// receive notifications for operations alarming that loop.
type Loop struct {
	Code string `yaml:"loop"`
}

// KeywordList is the payload of a "keyword" data item. Entries carrying
// keywords receive notifications for operations matching any of them.
type KeywordList struct {
	Keywords []string `yaml:"keywords"`
}

var (
	errEmptyPayload = errors.New("payload is empty")
	errWrongPayload = errors.New("unexpected payload type")
)

// BuiltinProviders returns the providers for the built-in address types.
func BuiltinProviders() []Provider {
	return []Provider{
		mailProvider{},
		phoneProvider{},
		pushProvider{},
		loopProvider{},
		keywordProvider{},
	}
}

type mailProvider struct{}

func (mailProvider) AddressType() string { return TypeMail }

func (mailProvider) Parse(node *yaml.Node) (any, error) {
	var payload MailAddress
	if err := node.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode mail payload: %w", err)
	}

	if _, err := mail.ParseAddress(payload.Address); err != nil {
		return nil, fmt.Errorf("invalid mail address %q: %w", payload.Address, err)
	}

	switch payload.Receipt {
	case ReceiptTo, ReceiptCC, ReceiptBCC:
	case "":
		payload.Receipt = ReceiptTo
	default:
		return nil, fmt.Errorf("invalid receipt type %q", payload.Receipt)
	}

	return payload, nil
}

func (mailProvider) Serialize(data any) (*yaml.Node, error) {
	payload, ok := data.(MailAddress)
	if !ok {
		return nil, errWrongPayload
	}

	return encodeNode(payload)
}

type phoneProvider struct{}

func (phoneProvider) AddressType() string { return TypePhone }

func (phoneProvider) Parse(node *yaml.Node) (any, error) {
	var payload Phone
	if err := node.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode phone payload: %w", err)
	}

	normalized, err := NormalizePhoneNumber(payload.Number)
	if err != nil {
		return nil, err
	}

	payload.Number = normalized

	return payload, nil
}

func (phoneProvider) Serialize(data any) (*yaml.Node, error) {
	payload, ok := data.(Phone)
	if !ok {
		return nil, errWrongPayload
	}

	return encodeNode(payload)
}

type pushProvider struct{}

func (pushProvider) AddressType() string { return TypePush }

func (pushProvider) Parse(node *yaml.Node) (any, error) {
	var payload Push
	if err := node.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode push payload: %w", err)
	}

	if payload.Consumer == "" || payload.APIKey == "" {
		return nil, fmt.Errorf("push payload: consumer and api_key are required: %w", errEmptyPayload)
	}

	return payload, nil
}

func (pushProvider) Serialize(data any) (*yaml.Node, error) {
	payload, ok := data.(Push)
	if !ok {
		return nil, errWrongPayload
	}

	return encodeNode(payload)
}

type loopProvider struct{}

func (loopProvider) AddressType() string { return TypeLoop }

func (loopProvider) Parse(node *yaml.Node) (any, error) {
	var payload Loop
	if err := node.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode loop payload: %w", err)
	}

	payload.Code = strings.TrimSpace(payload.Code)
	if payload.Code == "" {
		return nil, fmt.Errorf("loop payload: %w", errEmptyPayload)
	}

	return payload, nil
}

func (loopProvider) Serialize(data any) (*yaml.Node, error) {
	payload, ok := data.(Loop)
	if !ok {
		return nil, errWrongPayload
	}

	return encodeNode(payload)
}

type keywordProvider struct{}

func (keywordProvider) AddressType() string { return TypeKeyword }

func (keywordProvider) Parse(node *yaml.Node) (any, error) {
	var payload KeywordList
	if err := node.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode keyword payload: %w", err)
	}

	keywords := make([]string, 0, len(payload.Keywords))
	for _, keyword := range payload.Keywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			keywords = append(keywords, keyword)
		}
	}

	if len(keywords) == 0 {
		return nil, fmt.Errorf("keyword payload: %w", errEmptyPayload)
	}

	payload.Keywords = keywords

	return payload, nil
}

func (keywordProvider) Serialize(data any) (*yaml.Node, error) {
	payload, ok := data.(KeywordList)
	if !ok {
		return nil, errWrongPayload
	}

	return encodeNode(payload)
}

// NormalizePhoneNumber strips separators and validates the remaining digits.
func NormalizePhoneNumber(number string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '/', '(', ')', '.':
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(number))

	if cleaned == "" {
		return "", fmt.Errorf("phone number: %w", errEmptyPayload)
	}

	digits := cleaned
	if strings.HasPrefix(cleaned, "+") {
		digits = cleaned[1:]
	}

	if digits == "" || strings.ContainsFunc(digits, func(r rune) bool { return r < '0' || r > '9' }) {
		return "", fmt.Errorf("invalid phone number %q", number)
	}

	return cleaned, nil
}

// encodeNode marshals a payload into a YAML node.
func encodeNode(v any) (*yaml.Node, error) {
	node := new(yaml.Node)
	if err := node.Encode(v); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return node, nil
}
