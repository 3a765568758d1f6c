package duplicates

import (
	"encoding/json"
	"fmt"

	pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
)

// MatchKind discriminates MatchDetails variants.
type MatchKind string

const (
	MatchKindFieldValue MatchKind = "field_value"
	MatchKindFieldPair  MatchKind = "field_pair"
)

// MatchDetails explains why a pair was detected. Implementations are
// FieldValueMatch and FieldPairMatch.
type MatchDetails interface {
	Kind() MatchKind
	matchDetails()
}

// FieldValueMatch records an exact match on one normalized value.
type FieldValueMatch struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (FieldValueMatch) Kind() MatchKind { return MatchKindFieldValue }
func (FieldValueMatch) matchDetails()   {}

// FieldPairMatch records a fuzzy match between two differing values.
type FieldPairMatch struct {
	Field  string            `json:"field"`
	Value1 string            `json:"value1"`
	Value2 string            `json:"value2"`
	Extra  map[string]string `json:"extra,omitempty"`
}

func (FieldPairMatch) Kind() MatchKind { return MatchKindFieldPair }
func (FieldPairMatch) matchDetails()   {}

// Keys used in FieldPairMatch.Extra.
const (
	ExtraOrganizationID1 = "organization_id_1"
	ExtraOrganizationID2 = "organization_id_2"
	ExtraDateOverlap     = "date_overlap"
)

// MarshalMatchDetails encodes details as a JSON object tagged with "kind".
// A nil value encodes as JSON null.
func MarshalMatchDetails(d MatchDetails) ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	switch v := d.(type) {
	case FieldValueMatch:
		return json.Marshal(struct {
			Kind MatchKind `json:"kind"`
			FieldValueMatch
		}{MatchKindFieldValue, v})
	case FieldPairMatch:
		return json.Marshal(struct {
			Kind MatchKind `json:"kind"`
			FieldPairMatch
		}{MatchKindFieldPair, v})
	default:
		return nil, fmt.Errorf("%w: unsupported match details %T", pferrors.ErrValidation, d)
	}
}

// UnmarshalMatchDetails decodes the tagged JSON produced by MarshalMatchDetails.
func UnmarshalMatchDetails(data []byte) (MatchDetails, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var head struct {
		Kind MatchKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding match details: %w", err)
	}
	switch head.Kind {
	case MatchKindFieldValue:
		var v FieldValueMatch
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decoding field_value details: %w", err)
		}
		return v, nil
	case MatchKindFieldPair:
		var v FieldPairMatch
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decoding field_pair details: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unknown match details kind %q", pferrors.ErrValidation, head.Kind)
	}
}

type pairJSON Pair

// MarshalJSON includes the tagged match details alongside the pair fields.
func (p Pair) MarshalJSON() ([]byte, error) {
	details, err := MarshalMatchDetails(p.MatchDetails)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		pairJSON
		MatchDetails json.RawMessage `json:"match_details"`
	}{pairJSON(p), details})
}

// UnmarshalJSON reverses MarshalJSON.
func (p *Pair) UnmarshalJSON(data []byte) error {
	var aux struct {
		pairJSON
		MatchDetails json.RawMessage `json:"match_details"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	details, err := UnmarshalMatchDetails(aux.MatchDetails)
	if err != nil {
		return err
	}
	*p = Pair(aux.pairJSON)
	p.MatchDetails = details
	return nil
}
