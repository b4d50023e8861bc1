package lottery

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NumbersPerDraw is the size of every draw, user or winning.
const NumbersPerDraw = 6

// Draw is the persisted record. Ciphertext is the only form the numbers are
// ever stored in.
type Draw struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"not null;index"`
	Ciphertext []byte `gorm:"column:draw;not null"`
	Win        bool   `gorm:"not null;default:false"`
	Played     bool   `gorm:"not null;default:false"`
	Match      bool   `gorm:"not null;default:false"`
	Round      int    `gorm:"not null;default:0"`
	CreatedAt  time.Time
}

func (Draw) TableName() string {
	return "draws"
}

// DrawView is a decrypted copy of a Draw. It has no persistence mapping and
// must never be written back.
type DrawView struct {
	ID      uint   `json:"id"`
	UserID  uint   `json:"user_id"`
	Numbers []int  `json:"numbers"`
	Draw    string `json:"draw"`
	Win     bool   `json:"win"`
	Played  bool   `json:"played"`
	Match   bool   `json:"match"`
	Round   int    `json:"round"`
}

// Winner is one matching entry of a resolved round.
type Winner struct {
	Round   int    `json:"round"`
	Draw    string `json:"draw"`
	Numbers []int  `json:"numbers"`
	UserID  uint   `json:"user_id"`
	Email   string `json:"email"`
}

// RoundReport is the outcome of RunRound. Failed counts entries that could
// not be decrypted; they are marked played but never reported as winners.
type RoundReport struct {
	Round   int      `json:"round"`
	Entries int      `json:"entries"`
	Winners []Winner `json:"winners"`
	Failed  int      `json:"failed"`
}

// FormatNumbers renders numbers as the plaintext that gets encrypted.
func FormatNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}

// ParseNumbers reverses FormatNumbers, tolerating any whitespace.
func ParseNumbers(s string) ([]int, error) {
	fields := strings.Fields(s)
	numbers := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("malformed draw %q: %w", s, err)
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

func normalizeDraw(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SameDraw compares two plaintext draws after normalizing whitespace.
func SameDraw(a, b string) bool {
	return normalizeDraw(a) == normalizeDraw(b)
}
