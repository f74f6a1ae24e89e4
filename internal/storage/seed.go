package storage

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// SeedUser declares a user, the account it belongs to and, optionally, the
// name of its divorcee within the same account.
type SeedUser struct {
	Account  string
	User     string
	Divorcee string
}

// ReadSeedFile parses lines of the form "account:user[:divorcee]".
// Blank lines and lines starting with '#' are skipped. A missing file yields
// no seeds.
func ReadSeedFile(path string) ([]SeedUser, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var out []SeedUser
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := ParseSeedLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return out, validateSeeds(out)
}

func ParseSeedLine(line string) (SeedUser, error) {
	parts := strings.Split(line, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return SeedUser{}, fmt.Errorf("expected account:user[:divorcee], got %q", line)
	}
	s := SeedUser{Account: strings.TrimSpace(parts[0]), User: strings.TrimSpace(parts[1])}
	if len(parts) == 3 {
		s.Divorcee = strings.TrimSpace(parts[2])
	}
	if s.Account == "" || s.User == "" {
		return SeedUser{}, fmt.Errorf("empty account or user in %q", line)
	}
	if s.Divorcee == s.User {
		return SeedUser{}, fmt.Errorf("user %s cannot be its own divorcee", s.User)
	}
	return s, nil
}

// validateSeeds rejects divorcees declared in a different account.
func validateSeeds(seeds []SeedUser) error {
	accountOf := make(map[string]string, len(seeds))
	for _, s := range seeds {
		if prev, ok := accountOf[s.User]; ok && prev != s.Account {
			return fmt.Errorf("user %s declared in accounts %s and %s", s.User, prev, s.Account)
		}
		accountOf[s.User] = s.Account
	}
	for _, s := range seeds {
		if s.Divorcee == "" {
			continue
		}
		if acc, ok := accountOf[s.Divorcee]; ok && acc != s.Account {
			return fmt.Errorf("divorcee %s of %s belongs to account %s", s.Divorcee, s.User, acc)
		}
	}
	return nil
}
