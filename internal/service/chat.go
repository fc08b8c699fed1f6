package service

import (
	"context"

	"github.com/mmeshcher/storefront/internal/chat"
)

// Chat возвращает разговор поддержки, применив наступившие ответы бота.
func (s *Service) Chat(ctx context.Context, id string) (*chat.Snapshot, error) {
	unlock := s.lock(id)
	defer unlock()

	if _, err := s.customerSession(ctx, id); err != nil {
		return nil, err
	}

	snap := s.chatMachine(id).Snapshot()
	return &snap, nil
}

// SendChatMessage отправляет произвольный текст в чат поддержки.
func (s *Service) SendChatMessage(ctx context.Context, id, text string) (*chat.Snapshot, error) {
	return s.dispatchChat(ctx, id, chat.TextSent{Text: text})
}

// ChooseChatOption выбирает тему обращения из предложенных ботом.
func (s *Service) ChooseChatOption(ctx context.Context, id, option string) (*chat.Snapshot, error) {
	return s.dispatchChat(ctx, id, chat.OptionChosen{Option: option})
}

func (s *Service) dispatchChat(ctx context.Context, id string, ev chat.Event) (*chat.Snapshot, error) {
	unlock := s.lock(id)
	defer unlock()

	if _, err := s.customerSession(ctx, id); err != nil {
		return nil, err
	}

	m := s.chatMachine(id)
	if err := m.Dispatch(ev); err != nil {
		return nil, err
	}

	snap := m.Snapshot()
	return &snap, nil
}

// chatMachine возвращает автомат чата сессии, создавая его при первом обращении.
func (s *Service) chatMachine(id string) *chat.Machine {
	s.chatsMu.Lock()
	defer s.chatsMu.Unlock()

	e, ok := s.chats[id]
	if !ok {
		e = &chatEntry{machine: chat.NewMachine(s.chatDelay, s.now)}
		s.chats[id] = e
	}
	e.lastSeen = s.now()

	return e.machine
}

func (s *Service) dropChat(id string) {
	s.chatsMu.Lock()
	delete(s.chats, id)
	s.chatsMu.Unlock()
}
