// Package catalog stores the reference verses learners recite against.
//
// Ayahs are addressed by their "surah:ayah" key (for example "1:1"). The
// analyse endpoint accepts such a key in place of explicit ayah text and
// resolves it through a [Store]. [MemStore] serves catalogs loaded from YAML
// files; [PostgresStore] persists them in PostgreSQL.
package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SurahCount is the number of surahs in the Quran.
const SurahCount = 114

// ErrInvalidKey is returned for keys that are not of the form "surah:ayah".
var ErrInvalidKey = errors.New("catalog: invalid ayah key")

// Ayah is one reference verse.
type Ayah struct {
	Surah       int    `yaml:"surah" json:"surah"`
	Number      int    `yaml:"ayah" json:"ayah"`
	Text        string `yaml:"text" json:"text"`
	SurahName   string `yaml:"surah_name,omitempty" json:"surahName,omitempty"`
	Translation string `yaml:"translation,omitempty" json:"translation,omitempty"`
}

// Key returns the canonical "surah:ayah" key.
func (a Ayah) Key() string {
	return FormatKey(a.Surah, a.Number)
}

// Validate reports every problem with a, joined.
func (a Ayah) Validate() error {
	var errs []error
	if a.Surah < 1 || a.Surah > SurahCount {
		errs = append(errs, fmt.Errorf("surah %d out of range [1, %d]", a.Surah, SurahCount))
	}
	if a.Number < 1 {
		errs = append(errs, fmt.Errorf("ayah number %d must be positive", a.Number))
	}
	if strings.TrimSpace(a.Text) == "" {
		errs = append(errs, errors.New("text must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("catalog: ayah %s: %w", a.Key(), err)
	}
	return nil
}

// FormatKey builds the canonical key for surah and ayah.
func FormatKey(surah, ayah int) string {
	return strconv.Itoa(surah) + ":" + strconv.Itoa(ayah)
}

// ParseKey splits a "surah:ayah" key. Surrounding whitespace and leading
// zeros are tolerated, so " 002:005" parses as 2, 5.
func ParseKey(key string) (surah, ayah int, err error) {
	s, a, ok := strings.Cut(strings.TrimSpace(key), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	surah, err1 := strconv.Atoi(s)
	ayah, err2 := strconv.Atoi(a)
	if err1 != nil || err2 != nil || surah < 1 || surah > SurahCount || ayah < 1 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return surah, ayah, nil
}

// NormalizeKey returns the canonical form of key.
func NormalizeKey(key string) (string, error) {
	s, a, err := ParseKey(key)
	if err != nil {
		return "", err
	}
	return FormatKey(s, a), nil
}
