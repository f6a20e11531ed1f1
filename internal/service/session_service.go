package service

import (
	"context"
	"strings"
	"time"

	"medibot-be/internal/config"
	"medibot-be/internal/constant"
	"medibot-be/internal/dto"
	"medibot-be/internal/pkg/logger"
	"medibot-be/internal/pkg/serverutils"
	"medibot-be/internal/registry"
	"medibot-be/internal/repository/memory"
	"medibot-be/internal/repository/specification"
	"medibot-be/internal/repository/unitofwork"
	"medibot-be/pkg/events"
	"medibot-be/pkg/relay"
	"medibot-be/pkg/store"
)

// EventPublisher pushes integration events to the bus. Nil-able: the
// registry works without NATS, it just stops emitting turn events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// SessionService owns the lifecycle of connected users: init, history
// lookups and the full message exchange. It implements registry.Router, so
// every frame of a connection arrives here on the connection's reader
// goroutine. That goroutine is the sole writer of the user's session.
type SessionService struct {
	sessions   *memory.SessionRepository
	streamer   relay.Streamer
	publisher  IPublisherService
	eventBus   EventPublisher
	uowFactory unitofwork.RepositoryFactory
	cfg        config.ChatConfig
	logger     logger.ILogger
}

var _ registry.Router = &SessionService{}

func NewSessionService(
	sessions *memory.SessionRepository,
	streamer relay.Streamer,
	publisher IPublisherService,
	eventBus EventPublisher,
	uowFactory unitofwork.RepositoryFactory,
	cfg config.ChatConfig,
	log logger.ILogger,
) *SessionService {
	return &SessionService{
		sessions:   sessions,
		streamer:   streamer,
		publisher:  publisher,
		eventBus:   eventBus,
		uowFactory: uowFactory,
		cfg:        cfg,
		logger:     log,
	}
}

// HandleFrame dispatches one inbound frame. Anything malformed or unknown is
// answered with an error notification; the connection itself stays up.
func (s *SessionService) HandleFrame(client *registry.Client, raw []byte) {
	env, err := dto.ParseClientEnvelope(raw)
	if err != nil {
		client.Deliver(dto.NewError("unreadable message"))
		return
	}

	switch env.Type {
	case dto.KindInit:
		s.handleInit(client, env)
	case dto.KindHistory:
		s.handleHistory(client, env)
	case dto.KindMessage:
		s.handleMessage(client, env)
	}
}

// HandleDisconnect is called once when a connection's reader exits.
func (s *SessionService) HandleDisconnect(client *registry.Client) {
	if client.UserId == "" {
		return
	}
	// The session stays cached; only the live connection is gone.
	s.logger.Info("SessionService", "Connection closed", map[string]interface{}{"user_id": client.UserId})
}

func (s *SessionService) handleInit(client *registry.Client, env *dto.ClientEnvelope) {
	req := dto.InitRequest{UserId: env.UserId, Language: env.Language}
	if err := serverutils.ValidateRequest(&req); err != nil {
		client.Deliver(dto.NewError(err.Error()))
		return
	}

	sess, ok := s.sessions.Get(env.UserId)
	if !ok {
		loaded, err := s.loadSession(context.Background(), env.UserId, env.Language)
		if err != nil {
			s.logger.Error("SessionService", "Failed to load session", map[string]interface{}{
				"user_id": env.UserId,
				"error":   err.Error(),
			})
			client.Deliver(dto.NewError("failed to initialize session"))
			return
		}
		sess = loaded
	}
	if env.Language != "" {
		sess.Language = env.Language
	}
	s.sessions.Save(sess)

	client.Attach(env.UserId)
	client.Deliver(dto.NewInfo("session initialized"))
}

func (s *SessionService) handleHistory(client *registry.Client, env *dto.ClientEnvelope) {
	sess, ok := s.requireSession(client)
	if !ok {
		return
	}
	req := dto.HistoryRequest{ChatId: env.ChatId}
	if err := serverutils.ValidateRequest(&req); err != nil {
		client.Deliver(dto.NewError(err.Error()))
		return
	}

	// An unknown chat becomes exists-but-empty from here on.
	sess.EnsureChat(env.ChatId)
	s.sessions.Save(sess)

	client.Deliver(dto.NewHistory(sess.History[env.ChatId]))
}

func (s *SessionService) handleMessage(client *registry.Client, env *dto.ClientEnvelope) {
	sess, ok := s.requireSession(client)
	if !ok {
		return
	}
	req := dto.MessageRequest{ChatId: env.ChatId, Prompt: env.Prompt}
	if err := serverutils.ValidateRequest(&req); err != nil {
		client.Deliver(dto.NewError(err.Error()))
		return
	}

	sess.EnsureChat(env.ChatId)
	userMsg := sess.Append(env.ChatId, constant.MessageFromUser, env.Prompt, now())
	s.sessions.Save(sess)

	client.Deliver(dto.NewThinking())

	result, err := s.streamer.Stream(context.Background(), env.Prompt, sess.Language, func(text string) {
		client.Deliver(dto.NewPartial(text))
	})
	if err != nil {
		s.logger.Error("SessionService", "Exchange failed", map[string]interface{}{
			"user_id": sess.UserId,
			"chat_id": env.ChatId,
			"error":   err.Error(),
		})
		client.Deliver(dto.NewError("failed to generate a response"))
		// Keep the user's message; the bot reply never arrived.
		s.enqueuePersist(sess.UserId, []store.Message{userMsg}, nil)
		return
	}

	botMsg := sess.Append(env.ChatId, constant.MessageFromBot, result.Text, now())

	title, registered := s.registerTitle(sess, env.ChatId, result.Title)
	s.sessions.Save(sess)

	client.Deliver(dto.NewFinal(result.Text, title))

	s.enqueuePersist(sess.UserId, []store.Message{userMsg, botMsg}, registered)
	s.publishTurnEvent(sess, env.ChatId)
}

// registerTitle normalizes the produced title and indexes it at most once
// per user. Returns the title to surface and, when this turn created the
// index entry, the entry itself.
func (s *SessionService) registerTitle(sess *store.Session, chatId, produced string) (string, *store.ChatMeta) {
	title := strings.TrimSpace(produced)
	if len(title) < constant.MinTitleChars || title == constant.TitleUnavailable {
		title = constant.DefaultChatTitle
	}

	// The default is surfaced to the client but never indexed; a later
	// turn with a usable title still gets its chance.
	if title == constant.DefaultChatTitle {
		return title, nil
	}
	if sess.HasTitle(title) {
		return title, nil
	}
	if sess.TurnCount(chatId) > s.cfg.TitleTurnLimit {
		return title, nil
	}

	meta := store.ChatMeta{
		Id:        chatId,
		Title:     title,
		Timestamp: now(),
	}
	sess.Chats[title] = meta
	return title, &meta
}

func (s *SessionService) requireSession(client *registry.Client) (*store.Session, bool) {
	if client.UserId == "" {
		client.Deliver(dto.NewError("session not initialized"))
		return nil, false
	}
	sess, ok := s.sessions.Get(client.UserId)
	if !ok {
		client.Deliver(dto.NewError("session expired, send init again"))
		return nil, false
	}
	return sess, true
}

// loadSession rebuilds a session from the Persistence Gateway.
func (s *SessionService) loadSession(ctx context.Context, userId, language string) (*store.Session, error) {
	sess := store.NewSession(userId, language)

	uow := s.uowFactory.NewUnitOfWork(ctx)

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.OwnedByUser{UserId: userId},
		specification.OrderBy{Field: "seq"},
	)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		sess.History[m.ChatId] = append(sess.History[m.ChatId], store.Message{
			From:      m.Sender,
			Text:      m.Text,
			ChatId:    m.ChatId,
			Number:    m.Seq,
			Timestamp: m.Timestamp.Format(time.RFC3339),
		})
	}

	chats, err := uow.ChatRepository().FindAll(ctx,
		specification.OwnedByUser{UserId: userId},
	)
	if err != nil {
		return nil, err
	}
	for _, c := range chats {
		sess.Chats[c.Title] = store.ChatMeta{
			Id:        c.ChatId,
			Title:     c.Title,
			Timestamp: c.CreatedAt.Format(time.RFC3339),
		}
	}

	return sess, nil
}

func (s *SessionService) enqueuePersist(userId string, messages []store.Message, chat *store.ChatMeta) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishTurn(dto.PersistTurnMessage{
		UserId:   userId,
		Messages: messages,
		Chat:     chat,
	})
	if err != nil {
		// Persistence is best-effort from the exchange's point of view.
		s.logger.Error("SessionService", "Failed to enqueue turn for persistence", map[string]interface{}{
			"user_id": userId,
			"error":   err.Error(),
		})
	}
}

func (s *SessionService) publishTurnEvent(sess *store.Session, chatId string) {
	if s.eventBus == nil {
		return
	}
	event := events.NewBaseEvent(constant.TurnEventSubject, map[string]interface{}{
		"user_id":  sess.UserId,
		"chat_id":  chatId,
		"turns":    sess.TurnCount(chatId),
		"language": sess.Language,
	})
	if err := s.eventBus.Publish(context.Background(), event); err != nil {
		s.logger.Warn("SessionService", "Failed to publish turn event", map[string]interface{}{
			"user_id": sess.UserId,
			"error":   err.Error(),
		})
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
