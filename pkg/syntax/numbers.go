package syntax

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NumberLiteral is a numeric literal with its declared type.
type NumberLiteral struct {
	Type    string // resolver name: int32, uint32, int64, uint64, float32, float64, decimal
	Value   string // decimal digits with an optional sign, or the float text
	Negated bool   // the sign was folded into Value
}

// ParseNumber selects the type of a numeric literal from its suffix and
// magnitude. negative asks for a leading minus sign to be folded in; when
// the literal type cannot hold the negated value the result is returned
// unnegated and Negated is false.
func ParseNumber(raw string, negative bool) (NumberLiteral, error) {
	hex := strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X")
	digits, suffix := splitSuffix(raw, hex)

	isFloat := !hex && (strings.ContainsAny(digits, ".eE") || suffix == "f" || suffix == "d" || suffix == "m")
	if isFloat {
		return parseFloatLiteral(raw, digits, suffix, negative)
	}

	var (
		magnitude uint64
		err       error
	)
	if hex {
		magnitude, err = strconv.ParseUint(digits[2:], 16, 64)
	} else {
		magnitude, err = strconv.ParseUint(digits, 10, 64)
	}
	if err != nil {
		return NumberLiteral{}, fmt.Errorf("integral constant %s is too large", raw)
	}

	if negative {
		if lit, ok := negativeInteger(magnitude, suffix); ok {
			return lit, nil
		}
	}

	var typ string
	switch suffix {
	case "":
		switch {
		case magnitude <= math.MaxInt32:
			typ = "int32"
		case magnitude <= math.MaxUint32:
			typ = "uint32"
		case magnitude <= math.MaxInt64:
			typ = "int64"
		default:
			typ = "uint64"
		}
	case "u":
		typ = "uint32"
		if magnitude > math.MaxUint32 {
			typ = "uint64"
		}
	case "l":
		typ = "int64"
		if magnitude > math.MaxInt64 {
			typ = "uint64"
		}
	case "ul":
		typ = "uint64"
	default:
		return NumberLiteral{}, fmt.Errorf("invalid suffix %q for an integral constant", suffix)
	}
	return NumberLiteral{Type: typ, Value: strconv.FormatUint(magnitude, 10)}, nil
}

// negativeInteger folds a sign into literals whose type is signed.
func negativeInteger(magnitude uint64, suffix string) (NumberLiteral, bool) {
	value := "-" + strconv.FormatUint(magnitude, 10)
	switch suffix {
	case "":
		switch {
		case magnitude <= 1<<31:
			return NumberLiteral{Type: "int32", Value: value, Negated: true}, true
		case magnitude <= 1<<63:
			return NumberLiteral{Type: "int64", Value: value, Negated: true}, true
		}
	case "l":
		if magnitude <= 1<<63 {
			return NumberLiteral{Type: "int64", Value: value, Negated: true}, true
		}
	}
	return NumberLiteral{}, false
}

func parseFloatLiteral(raw, digits, suffix string, negative bool) (NumberLiteral, error) {
	value := digits
	if negative {
		value = "-" + digits
	}
	switch suffix {
	case "", "d":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return NumberLiteral{}, fmt.Errorf("floating-point constant %s is out of range", raw)
		}
		return NumberLiteral{Type: "float64", Value: value, Negated: negative}, nil
	case "f":
		if _, err := strconv.ParseFloat(value, 32); err != nil {
			return NumberLiteral{}, fmt.Errorf("floating-point constant %s is out of range", raw)
		}
		return NumberLiteral{Type: "float32", Value: value, Negated: negative}, nil
	case "m":
		if _, err := decimal.NewFromString(value); err != nil {
			return NumberLiteral{}, fmt.Errorf("decimal constant %s is invalid", raw)
		}
		return NumberLiteral{Type: "decimal", Value: value, Negated: negative}, nil
	default:
		return NumberLiteral{}, fmt.Errorf("invalid suffix %q for a real constant", suffix)
	}
}

// splitSuffix separates the type suffix, lower-cased and with "lu"
// normalized to "ul". Hexadecimal digits d and f are never suffixes.
func splitSuffix(raw string, hex bool) (digits, suffix string) {
	lower := strings.ToLower(raw)
	if strings.HasSuffix(lower, "ul") || strings.HasSuffix(lower, "lu") {
		return raw[:len(raw)-2], "ul"
	}
	last := lower[len(lower)-1]
	switch last {
	case 'u', 'l':
		return raw[:len(raw)-1], string(last)
	case 'f', 'd', 'm':
		if !hex {
			return raw[:len(raw)-1], string(last)
		}
	}
	return raw, ""
}
