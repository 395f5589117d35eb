//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/taskboard/apiserver/config"
	"github.com/taskboard/apiserver/internal/server"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestBoardLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("user_%d", time.Now().UnixNano())
	password := "testpass123!"

	token, err := registerAndLogin(t, baseURL, username, password)
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	board, err := createBoard(t, baseURL, token, "E2E Project")
	if err != nil {
		t.Fatalf("create board: %v", err)
	}

	todo, err := createList(t, baseURL, token, board.ID, "Todo")
	if err != nil {
		t.Fatalf("create todo list: %v", err)
	}
	doing, err := createList(t, baseURL, token, board.ID, "Doing")
	if err != nil {
		t.Fatalf("create doing list: %v", err)
	}
	if todo.Position != 0 || doing.Position != 1 {
		t.Fatalf("unexpected list positions: %d, %d", todo.Position, doing.Position)
	}

	first, err := createCard(t, baseURL, token, todo.ID, "First task")
	if err != nil {
		t.Fatalf("create first card: %v", err)
	}
	second, err := createCard(t, baseURL, token, todo.ID, "Second task")
	if err != nil {
		t.Fatalf("create second card: %v", err)
	}
	if first.Position != 0 || second.Position != 1 {
		t.Fatalf("unexpected card positions: %d, %d", first.Position, second.Position)
	}

	moved, err := moveCard(t, baseURL, token, first.ID, doing.ID, 0)
	if err != nil {
		t.Fatalf("move card: %v", err)
	}
	if moved.ListID != doing.ID || moved.Position != 0 {
		t.Fatalf("unexpected move result: list %s position %d", moved.ListID, moved.Position)
	}

	detail, err := getBoardDetail(t, baseURL, token, board.ID)
	if err != nil {
		t.Fatalf("get board detail: %v", err)
	}
	if len(detail.Lists) != 2 {
		t.Fatalf("expected 2 lists, got %d", len(detail.Lists))
	}
	if len(detail.Lists[0].Cards) != 1 || detail.Lists[0].Cards[0].Position != 0 {
		t.Fatalf("source list did not compact: %+v", detail.Lists[0].Cards)
	}
	if len(detail.Lists[1].Cards) != 1 || detail.Lists[1].Cards[0].ID != first.ID {
		t.Fatalf("target list missing moved card: %+v", detail.Lists[1].Cards)
	}

	if err := deleteBoard(t, baseURL, token, board.ID); err != nil {
		t.Fatalf("delete board: %v", err)
	}

	if err := expectBoardNotFound(t, baseURL, token, board.ID); err != nil {
		t.Fatalf("expected deleted board to be missing: %v", err)
	}
}

// Exercises the board-level serialization of list appends: N clients
// creating lists on one board at once must end with the dense
// positions 0..N-1, never a duplicated slot.
func TestConcurrentListCreatesKeepPositionsDense(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("racer_%d", time.Now().UnixNano())

	token, err := registerAndLogin(t, baseURL, username, "testpass123!")
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	board, err := createBoard(t, baseURL, token, "Contended Board")
	if err != nil {
		t.Fatalf("create board: %v", err)
	}

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := createList(t, baseURL, token, board.ID, fmt.Sprintf("Lane %d", i)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("create list: %v", err)
	}

	detail, err := getBoardDetail(t, baseURL, token, board.ID)
	if err != nil {
		t.Fatalf("get board detail: %v", err)
	}
	if len(detail.Lists) != workers {
		t.Fatalf("expected %d lists, got %d", workers, len(detail.Lists))
	}

	positions := make([]int, 0, workers)
	for _, list := range detail.Lists {
		positions = append(positions, list.Position)
	}
	sort.Ints(positions)
	for want, got := range positions {
		if got != want {
			t.Fatalf("positions not dense: %v", positions)
		}
	}

	if err := deleteBoard(t, baseURL, token, board.ID); err != nil {
		t.Fatalf("delete board: %v", err)
	}
}

type boardResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type listResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

type cardResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
	ListID   string `json:"list_id"`
}

type boardDetailResponse struct {
	ID    string `json:"id"`
	Lists []struct {
		ID       string         `json:"id"`
		Position int            `json:"position"`
		Cards    []cardResponse `json:"cards"`
	} `json:"lists"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func registerAndLogin(t *testing.T, baseURL, username, password string) (string, error) {
	t.Helper()

	payload := map[string]string{
		"username": username,
		"email":    fmt.Sprintf("%s@example.com", username),
		"password": password,
	}
	if _, err := postJSON(baseURL+"/auth/register", "", payload, http.StatusCreated, nil); err != nil {
		return "", err
	}

	var parsed tokenResponse
	login := map[string]string{"username": username, "password": password}
	if _, err := postJSON(baseURL+"/auth/login", "", login, http.StatusOK, &parsed); err != nil {
		return "", err
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("missing access token in login response")
	}
	return parsed.AccessToken, nil
}

func createBoard(t *testing.T, baseURL, token, title string) (boardResponse, error) {
	t.Helper()

	var parsed boardResponse
	payload := map[string]string{"title": title}
	if _, err := postJSON(baseURL+"/boards", token, payload, http.StatusCreated, &parsed); err != nil {
		return boardResponse{}, err
	}
	return parsed, nil
}

func createList(t *testing.T, baseURL, token, boardID, title string) (listResponse, error) {
	t.Helper()

	var parsed listResponse
	payload := map[string]string{"title": title}
	url := fmt.Sprintf("%s/boards/%s/lists", baseURL, boardID)
	if _, err := postJSON(url, token, payload, http.StatusCreated, &parsed); err != nil {
		return listResponse{}, err
	}
	return parsed, nil
}

func createCard(t *testing.T, baseURL, token, listID, title string) (cardResponse, error) {
	t.Helper()

	var parsed cardResponse
	payload := map[string]string{"title": title}
	url := fmt.Sprintf("%s/lists/%s/cards", baseURL, listID)
	if _, err := postJSON(url, token, payload, http.StatusCreated, &parsed); err != nil {
		return cardResponse{}, err
	}
	return parsed, nil
}

func moveCard(t *testing.T, baseURL, token, cardID, listID string, position int) (cardResponse, error) {
	t.Helper()

	payload := map[string]any{"list_id": listID, "position": position}
	body, err := json.Marshal(payload)
	if err != nil {
		return cardResponse{}, err
	}

	url := fmt.Sprintf("%s/cards/%s/move", baseURL, cardID)
	req, err := http.NewRequest(http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return cardResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return cardResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return cardResponse{}, fmt.Errorf("move card status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed cardResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return cardResponse{}, err
	}
	return parsed, nil
}

func getBoardDetail(t *testing.T, baseURL, token, boardID string) (boardDetailResponse, error) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/boards/%s", baseURL, boardID), nil)
	if err != nil {
		return boardDetailResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return boardDetailResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return boardDetailResponse{}, fmt.Errorf("get board status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed boardDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return boardDetailResponse{}, err
	}
	return parsed, nil
}

func deleteBoard(t *testing.T, baseURL, token, boardID string) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/boards/%s", baseURL, boardID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete board status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func expectBoardNotFound(t *testing.T, baseURL, token, boardID string) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/boards/%s", baseURL, boardID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expected 404 after delete, got %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func postJSON(url, token string, payload any, wantStatus int, out any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		return resp, fmt.Errorf("POST %s status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "taskboard")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "taskboard_db")
	_ = os.Setenv("DB_USE_SSL", "false")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
