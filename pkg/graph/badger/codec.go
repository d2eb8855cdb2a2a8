package badger

import (
	"encoding/json"
	"fmt"

	"github.com/matzehuels/graphtriple/pkg/graph"
	"github.com/matzehuels/graphtriple/pkg/triple"
	"github.com/matzehuels/graphtriple/pkg/visibility"
)

// Values are stored in their literal form so that every type the line
// notation knows survives a reopen.

type record struct {
	Type       int              `json:"type"`
	ID         string           `json:"id"`
	Visibility string           `json:"vis,omitempty"`
	Label      string           `json:"label,omitempty"`
	Out        string           `json:"out,omitempty"`
	In         string           `json:"in,omitempty"`
	Properties []propertyRecord `json:"props,omitempty"`
}

type propertyRecord struct {
	Key        string           `json:"key"`
	Name       string           `json:"name"`
	Value      valueRecord      `json:"value"`
	Visibility string           `json:"vis,omitempty"`
	Metadata   []metadataRecord `json:"meta,omitempty"`
}

type metadataRecord struct {
	Key        string      `json:"key"`
	Value      valueRecord `json:"value"`
	Visibility string      `json:"vis,omitempty"`
}

type valueRecord struct {
	Lexical  string               `json:"v,omitempty"`
	Type     string               `json:"t,omitempty"`
	External *graph.ExternalValue `json:"x,omitempty"`
}

func encodeElement(el *graph.Element) ([]byte, error) {
	rec := record{
		Type:       int(el.Type),
		ID:         el.ID,
		Visibility: string(el.Visibility),
		Label:      el.Label,
		Out:        el.OutVertexID,
		In:         el.InVertexID,
	}
	for _, p := range el.Properties {
		v, err := encodeValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("property %s:%s: %w", p.Name, p.Key, err)
		}
		pr := propertyRecord{Key: p.Key, Name: p.Name, Value: v, Visibility: string(p.Visibility)}
		for _, m := range p.Metadata.Entries() {
			mv, err := encodeValue(m.Value)
			if err != nil {
				return nil, fmt.Errorf("metadata %s on %s:%s: %w", m.Key, p.Name, p.Key, err)
			}
			pr.Metadata = append(pr.Metadata, metadataRecord{Key: m.Key, Value: mv, Visibility: string(m.Visibility)})
		}
		rec.Properties = append(rec.Properties, pr)
	}
	return json.Marshal(rec)
}

func decodeElement(data []byte) (*graph.Element, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	el := &graph.Element{
		Type:        graph.ElementType(rec.Type),
		ID:          rec.ID,
		Visibility:  visibility.Visibility(rec.Visibility),
		Label:       rec.Label,
		OutVertexID: rec.Out,
		InVertexID:  rec.In,
	}
	for _, pr := range rec.Properties {
		v, err := decodeValue(pr.Value)
		if err != nil {
			return nil, fmt.Errorf("%s %s property %s:%s: %w", el.Type, el.ID, pr.Name, pr.Key, err)
		}
		var md graph.Metadata
		for _, mr := range pr.Metadata {
			mv, err := decodeValue(mr.Value)
			if err != nil {
				return nil, fmt.Errorf("%s %s metadata %s: %w", el.Type, el.ID, mr.Key, err)
			}
			md = md.With(mr.Key, mv, visibility.Visibility(mr.Visibility))
		}
		el.Properties = append(el.Properties, graph.Property{
			Key:        pr.Key,
			Name:       pr.Name,
			Value:      v,
			Visibility: visibility.Visibility(pr.Visibility),
			Metadata:   md,
		})
	}
	return el, nil
}

func encodeValue(v any) (valueRecord, error) {
	if x, ok := v.(graph.ExternalValue); ok {
		return valueRecord{External: &x}, nil
	}
	lex, typ, err := triple.FormatValue(v)
	if err != nil {
		return valueRecord{}, err
	}
	return valueRecord{Lexical: lex, Type: typ}, nil
}

func decodeValue(r valueRecord) (any, error) {
	if r.External != nil {
		return *r.External, nil
	}
	return triple.DecodeLiteral(triple.Literal{Text: r.Lexical, TypeIRI: r.Type}, triple.DecodeContext{})
}
