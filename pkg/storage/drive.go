package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	DriveBackend   = "drive"
	stateLifetime  = 10 * time.Minute
	driveLinkFmt   = "https://drive.google.com/uc?id=%s&export=download"
	zipContentType = "application/zip"
)

var errInvalidState = errors.New("invalid or expired oauth state")

// Drive exports archives to the authorizing user's Google Drive. The OAuth
// token is kept in a JSON file and rewritten whenever it is refreshed.
// The consent state is signed with stateKey, so the callback may land on any
// replica sharing the key.
type Drive struct {
	oauth     *oauth2.Config
	tokenFile string
	stateKey  []byte
	now       func() time.Time
}

func NewDrive(clientSecretsFile, tokenFile, redirectURL, stateKey string) (*Drive, error) {
	if stateKey == "" {
		return nil, errors.New("oauth state signing key is empty")
	}
	b, err := os.ReadFile(clientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	return &Drive{oauth: cfg, tokenFile: tokenFile, stateKey: []byte(stateKey), now: time.Now}, nil
}

func (d *Drive) Name() string {
	return DriveBackend
}

// AuthCodeURL starts the consent flow. The returned state must come back on
// the callback.
func (d *Drive) AuthCodeURL() string {
	return d.oauth.AuthCodeURL(d.newState(), oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange completes the consent flow and persists the token.
func (d *Drive) Exchange(ctx context.Context, state, code string) error {
	if err := d.verifyState(state); err != nil {
		return errors.Join(ErrNotAuthorized, err)
	}

	tok, err := d.oauth.Exchange(ctx, code)
	if err != nil {
		return errors.Join(ErrNotAuthorized, err)
	}
	return saveToken(d.tokenFile, tok)
}

// state is "<nonce>.<issued unix>.<hex hmac-sha256 of the first two parts>"
func (d *Drive) newState() string {
	payload := uuid.NewString() + "." + strconv.FormatInt(d.now().Unix(), 10)
	return payload + "." + d.sign(payload)
}

func (d *Drive) verifyState(state string) error {
	i := strings.LastIndex(state, ".")
	if i < 0 {
		return errInvalidState
	}
	payload, sig := state[:i], state[i+1:]
	if !hmac.Equal([]byte(sig), []byte(d.sign(payload))) {
		return errInvalidState
	}
	_, issuedText, ok := strings.Cut(payload, ".")
	if !ok {
		return errInvalidState
	}
	issued, err := strconv.ParseInt(issuedText, 10, 64)
	if err != nil {
		return errInvalidState
	}
	age := d.now().Sub(time.Unix(issued, 0))
	if age < 0 || age > stateLifetime {
		return errInvalidState
	}
	return nil
}

func (d *Drive) sign(payload string) string {
	mac := hmac.New(sha256.New, d.stateKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *Drive) Authorized() bool {
	_, err := loadToken(d.tokenFile)
	return err == nil
}

func (d *Drive) Persist(ctx context.Context, localPath, _ string) (Reference, error) {
	tok, err := loadToken(d.tokenFile)
	if err != nil {
		return Reference{}, errors.Join(ErrNotAuthorized, err)
	}
	ts := &savingTokenSource{
		base: d.oauth.TokenSource(ctx, tok),
		file: d.tokenFile,
		last: tok.AccessToken,
	}
	srv, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return Reference{}, errors.Join(ErrStorage, err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return Reference{}, err
	}
	defer f.Close()

	name := filepath.Base(localPath)
	created, err := srv.Files.Create(&drive.File{Name: name, MimeType: zipContentType}).
		Media(f).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return Reference{}, errors.Join(ErrStorage, fmt.Errorf("drive upload: %w", err))
	}

	_, err = srv.Permissions.Create(created.Id, &drive.Permission{Type: "anyone", Role: "reader"}).
		Context(ctx).
		Do()
	if err != nil {
		return Reference{}, errors.Join(ErrStorage, fmt.Errorf("drive share: %w", err))
	}
	zerolog.Ctx(ctx).Info().Str("file_id", created.Id).Msg("archive exported to drive")

	return Reference{
		Backend:     DriveBackend,
		Filename:    name,
		ObjectName:  created.Id,
		DownloadURL: fmt.Sprintf(driveLinkFmt, created.Id),
	}, nil
}

type savingTokenSource struct {
	base oauth2.TokenSource
	file string

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := saveToken(s.file, tok); err != nil {
			return nil, err
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

func loadToken(file string) (*oauth2.Token, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("empty token")
	}
	return tok, nil
}

func saveToken(file string, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(file, b, 0o600)
}
