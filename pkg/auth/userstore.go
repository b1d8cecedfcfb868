// Package auth covers login verification, cookie sessions, the login rate
// limiter and the request middleware that attaches the caller's identity.
package auth

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kcmh-data/sqlbot-engine/pkg/models"
)

// ErrInvalidCredentials covers unknown emails and wrong credentials alike,
// so the response does not leak which one it was.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore holds the allowed users loaded from CSV plus the super-user
// list. Read-only after load.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*storedUser
}

type storedUser struct {
	info     models.UserInfo
	password string
}

// LoadUserStore reads the users CSV (email, id, name, department; the id
// doubles as the credential) and the super-user email list JSON.
func LoadUserStore(usersCSV, superUsersJSON string, logger *zap.Logger) (*UserStore, error) {
	f, err := os.Open(usersCSV)
	if err != nil {
		return nil, fmt.Errorf("opening users file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading users file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("users file is empty")
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	col := func(row []string, name string) string {
		i, ok := header[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	superUsers, err := loadSuperUsers(superUsersJSON)
	if err != nil {
		return nil, err
	}

	store := &UserStore{users: make(map[string]*storedUser)}
	for _, row := range records[1:] {
		email := strings.ToLower(col(row, "email"))
		if email == "" {
			continue
		}
		role := models.RoleStandardUser
		if superUsers[email] {
			role = models.RoleSuperUser
		}
		store.users[email] = &storedUser{
			info: models.UserInfo{
				Email:      email,
				Name:       col(row, "name"),
				Department: col(row, "department"),
				Role:       role,
			},
			password: col(row, "id"),
		}
	}

	logger.Info("user store loaded",
		zap.Int("users", len(store.users)),
		zap.Int("super_users", len(superUsers)))
	return store, nil
}

func loadSuperUsers(path string) (map[string]bool, error) {
	if path == "" {
		return map[string]bool{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading super users: %w", err)
	}
	var emails []string
	if err := json.Unmarshal(data, &emails); err != nil {
		return nil, fmt.Errorf("parsing super users: %w", err)
	}
	out := make(map[string]bool, len(emails))
	for _, e := range emails {
		out[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return out, nil
}

// Authenticate checks an email/credential pair.
func (s *UserStore) Authenticate(email, password string) (*models.UserInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok || u.password == "" || u.password != password {
		return nil, ErrInvalidCredentials
	}
	info := u.info
	return &info, nil
}

// Lookup returns the user for an already-authenticated email.
func (s *UserStore) Lookup(email string) (*models.UserInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, false
	}
	info := u.info
	return &info, true
}
