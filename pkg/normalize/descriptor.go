package normalize

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"marketlink/pkg/core"
)

// PairTable maps canonical pairs (e.g. "btc_jpy") to venue codes (e.g. "XXBTZJPY").
type PairTable map[string]string

// Code returns the venue code for pair.
func (t PairTable) Code(pair string) (string, bool) {
	code, ok := t[pair]
	return code, ok
}

// Pairs returns the canonical pairs in sorted order.
func (t PairTable) Pairs() []string {
	out := make([]string, 0, len(t))
	for p := range t {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Field locates one value. A zero Field means the venue does not provide it.
type Field struct {
	Path     Path
	Optional bool
}

// Required declares a field that must be present.
func Required(elems ...any) Field {
	return Field{Path: P(elems...)}
}

// Optional declares a field that may be absent.
func Optional(elems ...any) Field {
	return Field{Path: P(elems...), Optional: true}
}

// TickerSpec maps a venue ticker body onto core.Ticker. Paths are relative to Root.
type TickerSpec struct {
	Root      Path
	Ask       Field
	Bid       Field
	Last      Field
	High      Field
	Low       Field
	Volume    Field
	VWAP      Field
	Timestamp Field
}

// DepthSpec maps a venue order book onto core.Depth. Each level is an array
// whose first two elements are price and size.
type DepthSpec struct {
	Root Path
	Asks Path
	Bids Path
}

// StatusSpec describes how a venue reports failure inside a body.
type StatusSpec struct {
	// Success is the path of a success flag. Empty means the HTTP status decides.
	Success Path
	// ErrorCode and ErrorMessage locate the venue's own error details.
	ErrorCode    Path
	ErrorMessage Path
	// ErrorList is the path of an array that is non-empty on failure.
	ErrorList Path
}

// Descriptor declares one venue's response shapes.
type Descriptor struct {
	Exchange string
	Pairs    PairTable
	Ticker   TickerSpec
	Depth    DepthSpec
	Status   StatusSpec
}

// Malformed wraps err as a MalformedResponse for this venue.
func (d *Descriptor) Malformed(err error) *core.ExchangeError {
	return core.NewMalformedResponse(d.Exchange, 0, err)
}

// Inspect decodes resp and classifies failures:
//
//   - non-2xx with a decodable body: ExchangeRejected, code from ErrorCode or the HTTP status
//   - non-2xx without one: ConnectionFailed
//   - 2xx that does not decode: MalformedResponse
//   - 2xx with a false success flag or a non-empty error list: ExchangeRejected
func (d *Descriptor) Inspect(resp *core.Response) (*Document, error) {
	if resp == nil {
		return nil, d.Malformed(fmt.Errorf("nil response"))
	}

	doc, decodeErr := Decode(resp.Body)

	if !resp.IsSuccess() {
		if decodeErr != nil {
			return nil, core.NewExchangeError(d.Exchange, core.ErrorTypeConnectionFailed, resp.StatusCode,
				fmt.Sprintf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))).
				WithCode(core.ErrCodeHTTPStatus)
		}
		code := d.errorCode(doc)
		if code == "" {
			code = strconv.Itoa(resp.StatusCode)
		}
		msg := d.errorMessage(doc)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, core.NewRejection(d.Exchange, resp.StatusCode, code, msg)
	}

	if decodeErr != nil {
		return nil, core.NewMalformedResponse(d.Exchange, resp.StatusCode, decodeErr)
	}

	if len(d.Status.Success) > 0 {
		ok, err := doc.Flag(d.Status.Success)
		if err != nil {
			return nil, core.NewMalformedResponse(d.Exchange, resp.StatusCode, err)
		}
		if !ok {
			return nil, core.NewRejection(d.Exchange, resp.StatusCode, d.errorCode(doc), d.errorMessage(doc))
		}
	}

	if len(d.Status.ErrorList) > 0 {
		if list, ok := doc.Lookup(d.Status.ErrorList); ok {
			items, isArr := list.([]any)
			if !isArr {
				return nil, core.NewMalformedResponse(d.Exchange, resp.StatusCode,
					fmt.Errorf("%s: expected array, got %T", d.Status.ErrorList, list))
			}
			if len(items) > 0 {
				msgs := make([]string, 0, len(items))
				for _, it := range items {
					s, _ := ToString(it)
					msgs = append(msgs, s)
				}
				return nil, core.NewRejection(d.Exchange, resp.StatusCode, msgs[0], strings.Join(msgs, "; "))
			}
		}
	}

	return doc, nil
}

func (d *Descriptor) errorCode(doc *Document) string {
	if len(d.Status.ErrorCode) == 0 {
		return ""
	}
	s, err := doc.String(d.Status.ErrorCode)
	if err != nil {
		return ""
	}
	return s
}

func (d *Descriptor) errorMessage(doc *Document) string {
	if len(d.Status.ErrorMessage) == 0 {
		return ""
	}
	s, err := doc.String(d.Status.ErrorMessage)
	if err != nil {
		return ""
	}
	return s
}

// ParseTicker builds a Ticker for the venue code of pair.
func (d *Descriptor) ParseTicker(doc *Document, pair string, now time.Time) (*core.Ticker, error) {
	code, ok := d.Pairs.Code(pair)
	if !ok {
		return nil, core.NewUnsupportedPair(d.Exchange, pair)
	}
	layout := d.Ticker
	root := layout.Root.Bind(code)

	t := &core.Ticker{Pair: pair, LocalTimestamp: now.Unix()}
	fields := []struct {
		dst   *core.NullDecimal
		field Field
	}{
		{&t.Ask, layout.Ask},
		{&t.Bid, layout.Bid},
		{&t.Last, layout.Last},
		{&t.High, layout.High},
		{&t.Low, layout.Low},
		{&t.Volume, layout.Volume},
		{&t.VWAP, layout.VWAP},
	}
	for _, f := range fields {
		if len(f.field.Path) == 0 {
			continue
		}
		path := root.Join(f.field.Path.Bind(code)...)
		if f.field.Optional {
			v, err := doc.OptionalDecimal(path)
			if err != nil {
				return nil, d.Malformed(err)
			}
			*f.dst = v
			continue
		}
		v, err := doc.Decimal(path)
		if err != nil {
			return nil, d.Malformed(err)
		}
		*f.dst = core.SomeDecimal(v)
	}

	if len(layout.Timestamp.Path) > 0 {
		path := root.Join(layout.Timestamp.Path...)
		if _, present := doc.Lookup(path); present || !layout.Timestamp.Optional {
			ts, err := doc.Int64(path)
			if err != nil {
				return nil, d.Malformed(err)
			}
			t.Timestamp = &ts
		}
	}
	return t, nil
}

// ParseDepth builds a Depth for the venue code of pair, keeping level order.
func (d *Descriptor) ParseDepth(doc *Document, pair string, now time.Time) (*core.Depth, error) {
	code, ok := d.Pairs.Code(pair)
	if !ok {
		return nil, core.NewUnsupportedPair(d.Exchange, pair)
	}
	root := d.Depth.Root.Bind(code)

	asks, err := ParseLevels(doc, root.Join(d.Depth.Asks...))
	if err != nil {
		return nil, d.Malformed(err)
	}
	bids, err := ParseLevels(doc, root.Join(d.Depth.Bids...))
	if err != nil {
		return nil, d.Malformed(err)
	}
	return &core.Depth{Pair: pair, Asks: asks, Bids: bids, LocalTimestamp: now.Unix()}, nil
}

// ParseLevels reads an array of [price, size, ...] levels in the order given.
func ParseLevels(doc *Document, path Path) ([]core.DepthLevel, error) {
	raw, err := doc.Array(path)
	if err != nil {
		return nil, err
	}
	levels := make([]core.DepthLevel, 0, len(raw))
	for i, entry := range raw {
		pair, ok := entry.([]any)
		if !ok || len(pair) < 2 {
			return nil, fmt.Errorf("%s: level must be [price, size]", path.Join(i))
		}
		price, err := ToDecimal(pair[0])
		if err != nil {
			return nil, fmt.Errorf("%s: price: %w", path.Join(i), err)
		}
		size, err := ToDecimal(pair[1])
		if err != nil {
			return nil, fmt.Errorf("%s: size: %w", path.Join(i), err)
		}
		levels = append(levels, core.DepthLevel{Price: price, Size: size})
	}
	return levels, nil
}
