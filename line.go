package serial

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// WordLength is the number of data bits per character.
type WordLength uint8

const (
	WordLength5 WordLength = 5
	WordLength6 WordLength = 6
	WordLength7 WordLength = 7
	WordLength8 WordLength = 8
)

// StopBits selects the number of stop bits per character.
type StopBits uint8

const (
	// StopBits1 represents 1 stop bit
	StopBits1 StopBits = iota
	// StopBits1Half represents 1.5 stop bits
	StopBits1Half
	// StopBits2 represents 2 stop bits
	StopBits2
)

func (sb StopBits) String() string {
	switch sb {
	case StopBits1:
		return "1"
	case StopBits1Half:
		return "1.5"
	case StopBits2:
		return "2"
	}
	return "StopBits(" + strconv.Itoa(int(sb)) + ")"
}

func (sb StopBits) MarshalText() ([]byte, error) { return []byte(sb.String()), nil }

// UnmarshalText accepts "1", "1.5" and "2".
func (sb *StopBits) UnmarshalText(text []byte) error {
	switch strings.TrimSpace(string(text)) {
	case "1":
		*sb = StopBits1
	case "1.5":
		*sb = StopBits1Half
	case "2":
		*sb = StopBits2
	default:
		return fmt.Errorf("%w: stop bits %q", ErrInvalidConfig, text)
	}
	return nil
}

// Parity defines the parity setting of a character frame.
type Parity uint8

const (
	// ParityNone represents no parity bit
	ParityNone Parity = iota
	// ParityOdd represents odd parity bit
	ParityOdd
	// ParityEven represents even parity bit
	ParityEven
	// ParityMark represents mark parity bit (always 1)
	ParityMark
	// ParitySpace represents space parity bit (always 0)
	ParitySpace
)

var parityNames = [...]string{"none", "odd", "even", "mark", "space"}

func (pa Parity) String() string {
	if int(pa) < len(parityNames) {
		return parityNames[pa]
	}
	return "Parity(" + strconv.Itoa(int(pa)) + ")"
}

func (pa Parity) MarshalText() ([]byte, error) { return []byte(pa.String()), nil }

// UnmarshalText accepts the full names and the single letters N, O, E, M, S.
func (pa *Parity) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for i, name := range parityNames {
		if s == name || s == name[:1] {
			*pa = Parity(i)
			return nil
		}
	}
	return fmt.Errorf("%w: parity %q", ErrInvalidConfig, text)
}

// LineConfig is the framing applied to the peripheral by BeginCustom.
type LineConfig struct {
	BaudRate   uint32     `yaml:"baud_rate" json:"baud_rate" validate:"gt=0"`
	WordLength WordLength `yaml:"word_length" json:"word_length" validate:"min=5,max=8"`
	StopBits   StopBits   `yaml:"stop_bits" json:"stop_bits" validate:"lte=2"`
	Parity     Parity     `yaml:"parity" json:"parity" validate:"lte=4"`
}

// DefaultLineConfig returns 8 data bits, 1 stop bit and no parity at baud.
func DefaultLineConfig(baud uint32) LineConfig {
	return LineConfig{
		BaudRate:   baud,
		WordLength: WordLength8,
		StopBits:   StopBits1,
		Parity:     ParityNone,
	}
}

func (lc LineConfig) String() string {
	return fmt.Sprintf("%d %d%c%s", lc.BaudRate, lc.WordLength, strings.ToUpper(lc.Parity.String())[0], lc.StopBits)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the framing for values no binding could apply.
func (lc LineConfig) Validate() error {
	if err := structValidator().Struct(lc); err != nil {
		return fmt.Errorf("%w: line %s: %v", ErrInvalidConfig, lc, err)
	}
	return nil
}
