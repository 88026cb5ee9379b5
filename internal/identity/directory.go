package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// StaticDirectory is an in-memory roster used by tests and the CLI.
type StaticDirectory struct {
	mu       sync.RWMutex
	students map[string]Validation
}

// NewStaticDirectory builds a directory from number -> (id, name) entries.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{students: make(map[string]Validation)}
}

// Add registers a student under the given number.
func (d *StaticDirectory) Add(number, id, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.students[number] = Validation{Valid: true, StudentID: id, StudentName: name}
}

// ValidateStudentNumber looks up the number with exact matching.
func (d *StaticDirectory) ValidateStudentNumber(_ context.Context, number string) (Validation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if v, ok := d.students[number]; ok {
		return v, nil
	}
	return Validation{}, nil
}

// HTTPDirectory queries the surrounding application's roster endpoint,
// GET {base}/students/validate?number=N, which answers with a Validation
// JSON body.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory creates a roster client for the given base URL.
func NewHTTPDirectory(baseURL string, timeout time.Duration) *HTTPDirectory {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// ValidateStudentNumber performs the roster lookup.
func (d *HTTPDirectory) ValidateStudentNumber(ctx context.Context, number string) (Validation, error) {
	u := fmt.Sprintf("%s/students/validate?number=%s", d.baseURL, url.QueryEscape(number))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Validation{}, fmt.Errorf("building roster request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Validation{}, fmt.Errorf("roster request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Validation{}, fmt.Errorf("roster request: unexpected status %d", resp.StatusCode)
	}

	var v Validation
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return Validation{}, fmt.Errorf("decoding roster response: %w", err)
	}
	return v, nil
}
