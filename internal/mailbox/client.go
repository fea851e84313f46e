package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/charset"
)

// Config holds the connection settings for one IMAP session.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// Timeout bounds the dial and TLS handshake. Defaults to 30s.
	Timeout time.Duration
}

// RawMessage is one fetched message, undecoded.
type RawMessage struct {
	UID          uint32
	Raw          []byte
	InternalDate time.Time
}

// SearchFilter narrows a folder search. Zero value matches all messages.
type SearchFilter struct {
	// FromDomain matches the From header (substring, per IMAP SEARCH
	// HEADER semantics).
	FromDomain string

	// Subject matches the Subject header.
	Subject string
}

// Session wraps one live IMAP connection with a selected folder.
// It is not safe for concurrent use; each scrape invocation owns its
// own Session and must Close it on all exit paths.
type Session struct {
	client *imapclient.Client
	folder string
}

// Dial connects to the IMAP server over implicit TLS and authenticates.
// Returns a ConnectionError on network/TLS failure and an AuthError on
// rejected credentials.
func Dial(_ context.Context, cfg Config) (*Session, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
		ServerName: cfg.Host,
	})
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	options := &imapclient.Options{
		WordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	}
	client := imapclient.New(conn, options)

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, &AuthError{Username: cfg.Username, Err: err}
	}

	return &Session{client: client}, nil
}

// Close logs out and releases the connection.
func (s *Session) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		return s.client.Close()
	}
	return nil
}

// SelectFolder selects the named folder read-only. A failed select is
// reported as a FolderNotFoundError.
func (s *Session) SelectFolder(_ context.Context, name string) error {
	opts := &imap.SelectOptions{ReadOnly: true}
	if _, err := s.client.Select(name, opts).Wait(); err != nil {
		return &FolderNotFoundError{Folder: name, Err: err}
	}
	s.folder = name
	return nil
}

// Search returns the UIDs of messages in the selected folder matching
// the filter, in mailbox order (oldest first).
func (s *Session) Search(_ context.Context, f SearchFilter) ([]uint32, error) {
	criteria := &imap.SearchCriteria{}
	if f.FromDomain != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key:   "From",
			Value: f.FromDomain,
		})
	}
	if f.Subject != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key:   "Subject",
			Value: f.Subject,
		})
	}

	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.folder, err)
	}

	uids := data.AllUIDs()
	out := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		out = append(out, uint32(uid))
	}
	return out, nil
}

// Fetch retrieves the full raw message for one UID without marking it
// seen. A missing or unreadable message yields a FetchError, which the
// caller tolerates per message.
func (s *Session) Fetch(_ context.Context, uid uint32) (*RawMessage, error) {
	uidSet := imap.UIDSetNum(imap.UID(uid))

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, &FetchError{UID: uid, Err: errors.New("message not found")}
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, &FetchError{UID: uid, Err: err}
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, &FetchError{UID: uid, Err: errors.New("no body returned")}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, &FetchError{UID: uid, Err: err}
	}

	return &RawMessage{
		UID:          uid,
		Raw:          raw,
		InternalDate: buf.InternalDate,
	}, nil
}

// ListFolders returns the names of all folders in the mailbox, sorted.
func (s *Session) ListFolders(_ context.Context) ([]string, error) {
	boxes, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	names := make([]string, 0, len(boxes))
	for _, mb := range boxes {
		names = append(names, mb.Mailbox)
	}
	sort.Strings(names)
	return names, nil
}
