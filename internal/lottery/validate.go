package lottery

import "fmt"

// ValidationError rejects a submitted draw. Position is 1-based; zero means
// the draw as a whole.
type ValidationError struct {
	Position int
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Position == 0 {
		return e.Message
	}
	return fmt.Sprintf("number %d: %s", e.Position, e.Message)
}

// Validate checks that numbers holds NumbersPerDraw values in [0, max], each
// no smaller than the one before it.
func Validate(numbers []int, max int) error {
	if len(numbers) != NumbersPerDraw {
		return &ValidationError{Message: fmt.Sprintf("a draw must have exactly %d numbers", NumbersPerDraw)}
	}

	for i, n := range numbers {
		pos := i + 1
		switch {
		case n < 0:
			return &ValidationError{Position: pos, Message: "must not be negative"}
		case n > max:
			return &ValidationError{Position: pos, Message: fmt.Sprintf("must be at most %d", max)}
		case i > 0 && n < numbers[i-1]:
			return &ValidationError{Position: pos, Message: fmt.Sprintf("must be at least %d", numbers[i-1])}
		}
	}
	return nil
}
