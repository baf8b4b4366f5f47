// Package proto adapts the MTProto client to the models.Conn contract.
package proto

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"memberflow/shared/models"
	"memberflow/shared/proxy"
)

const participantsPage = 200

type Connector struct {
	logger      *zap.Logger
	dialTimeout time.Duration
}

func NewConnector(logger *zap.Logger, dialTimeout time.Duration) *Connector {
	if dialTimeout <= 0 {
		dialTimeout = 30 * time.Second
	}
	return &Connector{logger: logger.Named("mtproto"), dialTimeout: dialTimeout}
}

func (c *Connector) Connect(ctx context.Context, cred models.Credential, p *proxy.Proxy) (models.Conn, error) {
	storage := &session.StorageMemory{}
	if err := loadToken(ctx, storage, cred.Session); err != nil {
		return nil, err
	}
	dialer, err := dialerFor(p)
	if err != nil {
		return nil, err
	}

	logger := c.logger.With(zap.Int("api_id", cred.APIID))
	if p != nil {
		logger = logger.With(zap.Stringer("proxy", p))
	}

	client := telegram.NewClient(cred.APIID, cred.APIHash, telegram.Options{
		Logger:         logger,
		SessionStorage: storage,
		NoUpdates:      true,
		Resolver: dcs.Plain(dcs.PlainOptions{
			Dial: dialer.DialContext,
		}),
	})

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	timer := time.NewTimer(c.dialTimeout)
	defer timer.Stop()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		if err == nil {
			err = errors.New("client stopped before ready")
		}
		return nil, fmt.Errorf("connect: %w", err)
	case <-timer.C:
		cancel()
		<-done
		return nil, fmt.Errorf("connect: timed out after %s", c.dialTimeout)
	case <-ctx.Done():
		cancel()
		<-done
		return nil, ctx.Err()
	}

	api := client.API()
	return &conn{
		client:  client,
		api:     api,
		peers:   peers.Options{}.Build(api),
		storage: storage,
		cancel:  cancel,
		done:    done,
		logger:  logger,
	}, nil
}

type conn struct {
	client  *telegram.Client
	api     *tg.Client
	peers   *peers.Manager
	storage *session.StorageMemory
	logger  *zap.Logger

	cancel context.CancelFunc
	done   chan error
	once   sync.Once
	err    error

	mu       sync.Mutex
	channels map[string]*tg.InputChannel
}

func (c *conn) IsAuthorized(ctx context.Context) (bool, error) {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return false, fmt.Errorf("auth status: %w", err)
	}
	return status.Authorized, nil
}

func (c *conn) Self(ctx context.Context) (int64, error) {
	self, err := c.client.Self(ctx)
	if err != nil {
		return 0, fmt.Errorf("get self: %w", err)
	}
	return self.ID, nil
}

func (c *conn) ListMembers(ctx context.Context, group string, limit int) ([]models.Member, error) {
	channel, err := c.resolveChannel(ctx, group)
	if err != nil {
		return nil, err
	}

	var members []models.Member
	for offset := 0; offset < limit; {
		page := min(participantsPage, limit-offset)
		res, err := c.api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
			Channel: channel,
			Filter:  &tg.ChannelParticipantsRecent{},
			Offset:  offset,
			Limit:   page,
		})
		if err != nil {
			return nil, fmt.Errorf("get participants of %s: %w", group, err)
		}
		participants, ok := res.(*tg.ChannelsChannelParticipants)
		if !ok {
			break
		}
		for _, u := range participants.Users {
			user, ok := u.(*tg.User)
			if !ok {
				continue
			}
			members = append(members, models.Member{
				ID:          user.ID,
				AccessHash:  user.AccessHash,
				IsBot:       user.Bot,
				IsDeleted:   user.Deleted,
				DisplayName: strings.TrimSpace(user.FirstName + " " + user.LastName),
			})
		}
		if len(participants.Participants) < page {
			break
		}
		offset += len(participants.Participants)
	}
	return members, nil
}

func (c *conn) Invite(ctx context.Context, group string, member models.Member) error {
	channel, err := c.resolveChannel(ctx, group)
	if err != nil {
		return err
	}
	_, err = c.api.ChannelsInviteToChannel(ctx, &tg.ChannelsInviteToChannelRequest{
		Channel: channel,
		Users: []tg.InputUserClass{
			&tg.InputUser{UserID: member.ID, AccessHash: member.AccessHash},
		},
	})
	return classifyInviteError(err)
}

func (c *conn) RequestLoginCode(ctx context.Context, phone string) (string, error) {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", fmt.Errorf("send code: %w", err)
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("send code: unexpected response %T", sent)
	}
	return code.PhoneCodeHash, nil
}

func (c *conn) SubmitLoginCode(ctx context.Context, phone, code, codeHash string) error {
	_, err := c.client.Auth().SignIn(ctx, phone, code, codeHash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return models.ErrPasswordRequired
	}
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

func (c *conn) SubmitPassword(ctx context.Context, password string) error {
	if _, err := c.client.Auth().Password(ctx, password); err != nil {
		return fmt.Errorf("check password: %w", err)
	}
	return nil
}

func (c *conn) ExportSession(ctx context.Context) (string, error) {
	return exportToken(ctx, c.storage)
}

func (c *conn) Disconnect() error {
	c.once.Do(func() {
		c.cancel()
		err := <-c.done
		if err != nil && !errors.Is(err, context.Canceled) {
			c.err = err
		}
	})
	return c.err
}

func (c *conn) resolveChannel(ctx context.Context, group string) (*tg.InputChannel, error) {
	domain := models.NormalizeGroup(group)

	c.mu.Lock()
	cached, ok := c.channels[domain]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	peer, err := c.peers.ResolveDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", group, err)
	}
	input, ok := peer.InputPeer().(*tg.InputPeerChannel)
	if !ok {
		return nil, fmt.Errorf("%s: %w", group, models.ErrUnsupportedGroup)
	}
	channel := &tg.InputChannel{ChannelID: input.ChannelID, AccessHash: input.AccessHash}

	c.mu.Lock()
	if c.channels == nil {
		c.channels = make(map[string]*tg.InputChannel)
	}
	c.channels[domain] = channel
	c.mu.Unlock()
	return channel, nil
}
