package types

import (
	"fmt"
	"strings"
	"unicode"
)

// Address is a Brazilian delivery address.
type Address struct {
	CEP          string `json:"cep"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
	Reference    string `json:"reference,omitempty"`
}

// Normalized trims every field and strips CEP punctuation ("01310-100" -> "01310100").
func (a Address) Normalized() Address {
	return Address{
		CEP:          digitsOnly(a.CEP),
		Street:       strings.TrimSpace(a.Street),
		Number:       strings.TrimSpace(a.Number),
		Neighborhood: strings.TrimSpace(a.Neighborhood),
		Reference:    strings.TrimSpace(a.Reference),
	}
}

// Missing lists the required fields that are blank.
func (a Address) Missing() []string {
	n := a.Normalized()
	var missing []string
	if n.CEP == "" {
		missing = append(missing, "cep")
	}
	if n.Street == "" {
		missing = append(missing, "street")
	}
	if n.Number == "" {
		missing = append(missing, "number")
	}
	if n.Neighborhood == "" {
		missing = append(missing, "neighborhood")
	}
	return missing
}

// IsZero reports whether no field is set.
func (a Address) IsZero() bool {
	return a.Normalized() == Address{}
}

// String renders "street, number, neighborhood, CEP: cep (Ref: reference)".
func (a Address) String() string {
	if a.IsZero() {
		return "Endereço não informado"
	}
	out := fmt.Sprintf("%s, %s, %s, CEP: %s", a.Street, a.Number, a.Neighborhood, a.CEP)
	if strings.TrimSpace(a.Reference) != "" {
		out += fmt.Sprintf(" (Ref: %s)", a.Reference)
	}
	return out
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
