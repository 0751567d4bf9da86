package remote

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"capconv/internal/dissect"
	"capconv/internal/errors"
	"capconv/internal/retry"
	"capconv/util"
)

// Client is a connection to one capture host.  It is safe for concurrent
// use once connected.
type Client struct {
	config *Config
	logger *util.Logger
	slots  chan struct{}

	// breaker fails session requests fast once the connection is dead.
	breaker *retry.CircuitBreaker

	mu     sync.RWMutex
	client *ssh.Client
}

// NewClient returns a Client that is ready to [Client.Connect].
func NewClient(cfg *Config, logger *util.Logger) *Client {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = util.Discard()
	}
	c := &Client{
		config: cfg,
		logger: logger,
		slots:  make(chan struct{}, cfg.MaxSessions),
	}
	c.breaker = retry.NewCircuitBreaker(&retry.CircuitBreakerConfig{
		MaxFailures:  3,
		ResetTimeout: 30 * time.Second,
		HalfOpenMax:  1,
		OnStateChange: func(from, to retry.State) {
			c.logger.Verbose("ssh: %s sessions %s -> %s", c.Addr(), from, to)
		},
	})
	return c
}

// Addr returns "host:port" of the capture host.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

// Connect dials the capture host and completes the handshake, retrying
// transient failures.  Authentication and host-key failures are not
// retried.
func (c *Client) Connect(ctx context.Context) error {
	authMethods, err := BuildAuthMethods(c.config)
	if err != nil {
		return errors.WrapSSH("auth", c.config.Host, c.config.Port, err)
	}
	hkCallback, err := hostKeyCallback(c.config)
	if err != nil {
		return errors.WrapSSH("hostkey", c.config.Host, c.config.Port, err)
	}
	sshCfg := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         c.config.ConnTimeout,
	}

	addr := c.Addr()
	b := *c.config.backoff()
	if b.OnRetry == nil {
		b.OnRetry = func(attempt int, wait time.Duration, err error) {
			c.logger.Verbose("ssh: %v; retrying in %v", err, wait.Round(time.Millisecond))
		}
	}
	return b.Do(ctx, func(attempt int) error {
		c.logger.Debug("ssh: dialing %s as %s (attempt %d)", addr, c.config.User, attempt)
		client, err := c.dial(ctx, addr, sshCfg)
		if err != nil {
			if isPermanent(err) {
				return retry.Permanent(err)
			}
			return err
		}
		c.mu.Lock()
		c.client = client
		c.mu.Unlock()
		c.breaker.Reset()
		c.logger.Verbose("ssh: connected to %s", addr)
		return nil
	})
}

func (c *Client) dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: cfg.Timeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.WrapSSH("dial", c.config.Host, c.config.Port, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, cfg)
	if err != nil {
		tcpConn.Close()
		return nil, errors.WrapSSH("handshake", c.config.Host, c.config.Port, err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func isPermanent(err error) bool {
	var ke *knownhosts.KeyError
	if errors.As(err, &ke) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "knownhosts:")
}

// Close shuts down the connection.  Running sessions are torn down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *Client) conn() (*ssh.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, errors.ErrNotConnected
	}
	return c.client, nil
}

// acquire waits for a free session slot.
func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() { <-c.slots }

func (c *Client) newSession(ctx context.Context) (*ssh.Session, error) {
	client, err := c.conn()
	if err != nil {
		return nil, err
	}
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	var sess *ssh.Session
	err = c.breaker.Execute(func() (e error) {
		sess, e = client.NewSession()
		return e
	})
	if err != nil {
		c.release()
		return nil, errors.WrapSSH("session", c.config.Host, c.config.Port, err)
	}
	return sess, nil
}

// Start implements dissect.Runner.  The command runs in its own session;
// cancelling ctx sends SIGKILL to it and closes the session.
func (c *Client) Start(ctx context.Context, name string, args []string) (dissect.Process, error) {
	sess, err := c.newSession(ctx)
	if err != nil {
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		c.release()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := util.NewTailBuffer(util.DefaultTailSize)
	sess.Stderr = stderr

	cmd := Command(name, args)
	c.logger.Debug("ssh exec %s: %s", c.Addr(), cmd)
	if err := sess.Start(cmd); err != nil {
		sess.Close()
		c.release()
		return nil, err
	}

	p := &sshProcess{sess: sess, stdout: stdout, stderr: stderr, release: c.release}
	p.stop = context.AfterFunc(ctx, func() {
		sess.Signal(ssh.SIGKILL)
		sess.Close()
	})
	return p, nil
}

type sshProcess struct {
	sess    *ssh.Session
	stdout  io.Reader
	stderr  *util.TailBuffer
	stop    func() bool
	release func()
	once    sync.Once
}

func (p *sshProcess) Stdout() io.Reader { return p.stdout }

func (p *sshProcess) Wait() error {
	err := p.sess.Wait()
	p.once.Do(func() {
		p.stop()
		p.sess.Close()
		p.release()
	})
	return err
}

func (p *sshProcess) Stderr() string { return p.stderr.String() }

// List returns the regular files directly inside dir on the capture
// host whose names end in ext, sorted, as remote paths.
func (c *Client) List(ctx context.Context, dir, ext string) ([]string, error) {
	sess, err := c.newSession(ctx)
	if err != nil {
		return nil, err
	}
	defer c.release()
	defer sess.Close()
	stop := context.AfterFunc(ctx, func() { sess.Close() })
	defer stop()

	var stderr bytes.Buffer
	sess.Stderr = &stderr
	out, err := sess.Output(Command("ls", []string{"-1Ap", "--", dir}))
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s:%s: %w: %s", c.config.Host, dir,
			err, strings.TrimSpace(stderr.String()))
	}

	var files []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		name := sc.Text()
		if name == "" || strings.HasSuffix(name, "/") || !strings.HasSuffix(name, ext) {
			continue
		}
		files = append(files, path.Join(dir, name))
	}
	sort.Strings(files)
	return files, sc.Err()
}

// Command renders name and args as a POSIX shell command line.
func Command(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, Quote(name))
	for _, a := range args {
		parts = append(parts, Quote(a))
	}
	return strings.Join(parts, " ")
}

// Quote single-quotes s for a POSIX shell unless it consists only of
// characters the shell treats literally.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("-_./=,:@+%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
