// Package portal defines the capability boundary between the checker core
// and whatever drives the scheduler website. The core only ever talks to
// a Driver; production wires the HTTP driver, tests wire a fake.
package portal

import (
	"context"
	"encoding/json"
)

// Response is a network response captured by the driver while the page
// performed background requests.
type Response struct {
	Status int
	URL    string
	Body   []byte
}

func (r Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Driver exposes the UI-automation primitives the session layer needs.
// Selectors are CSS-ish strings whose exact dialect belongs to the
// implementation.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	SelectOption(ctx context.Context, selector, value string) error

	// Responses returns the asynchronous responses captured since the
	// last call to ClearResponses, oldest first.
	Responses() []Response
	ClearResponses()

	// TextContents returns the text of every element matching selector.
	TextContents(ctx context.Context, selector string) ([]string, error)
	// OptionValues returns the non-empty value attributes of the options
	// under a select element.
	OptionValues(ctx context.Context, selector string) ([]string, error)
	// ElementCount reports how many elements match selector.
	ElementCount(ctx context.Context, selector string) (int, error)
}
