// Package chat реализует сценарный чат поддержки в виде конечного автомата.
//
// Ответы бота не добавляются сразу: Dispatch ставит их в очередь отложенных
// эффектов, а Flush применяет эффекты, срок которых наступил по часам автомата.
package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/storefront/internal/model"
)

// State описывает состояние сценария.
type State string

const (
	StateIdle                State = "idle"
	StateGreeted             State = "greeted"
	StateAwaitingTopicChoice State = "awaiting_topic_choice"
	StateTopicAnswered       State = "topic_answered"
	StateFreeForm            State = "free_form"
)

var (
	// ErrEmptyMessage возвращается при попытке отправить пустое сообщение.
	ErrEmptyMessage = errors.New("empty message")
	// ErrAwaitingOption возвращается, если бот ждёт выбора темы, а не текста.
	ErrAwaitingOption = errors.New("awaiting topic choice")
	// ErrNoOptions возвращается при выборе темы, когда темы не предложены.
	ErrNoOptions = errors.New("no topic options offered")
	// ErrUnknownOption возвращается при выборе темы не из списка.
	ErrUnknownOption = errors.New("unknown topic option")
	// ErrUnknownEvent возвращается для событий неизвестного типа.
	ErrUnknownEvent = errors.New("unknown chat event")
)

// Event описывает действие пользователя в чате.
type Event interface {
	isEvent()
}

// ProductSelected начинает новый разговор о товаре.
type ProductSelected struct {
	Product model.Product
}

// OptionChosen выбирает тему из предложенного списка.
type OptionChosen struct {
	Option string
}

// TextSent отправляет произвольный текст.
type TextSent struct {
	Text string
}

func (ProductSelected) isEvent() {}
func (OptionChosen) isEvent()    {}
func (TextSent) isEvent()        {}

// Effect описывает отложенное сообщение бота. Пустой Next оставляет состояние как есть.
type Effect struct {
	Due     time.Time
	Message model.ChatMessage
	Next    State
}

// Snapshot содержит видимое состояние чата.
type Snapshot struct {
	State    State               `json:"state"`
	Messages []model.ChatMessage `json:"messages"`
	Typing   bool                `json:"typing"`
	Options  []string            `json:"options,omitempty"`
}

// Machine хранит разговор одного пользователя. Не безопасен для конкурентного использования.
type Machine struct {
	delay    time.Duration
	now      func() time.Time
	newID    func() string
	state    State
	messages []model.ChatMessage
	pending  []Effect
	options  []string
}

// NewMachine создаёт автомат с приветствием бота. now может быть nil.
func NewMachine(delay time.Duration, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}

	m := &Machine{
		delay: delay,
		now:   now,
		newID: uuid.NewString,
		state: StateIdle,
	}
	m.messages = append(m.messages, m.message(WelcomeText, model.SenderBot, nil))

	return m
}

// currentState возвращает состояние после применения наступивших эффектов.
func (m *Machine) currentState() State {
	m.Flush()
	return m.state
}

// pendingEffects возвращает копию очереди ещё не применённых эффектов.
func (m *Machine) pendingEffects() []Effect {
	res := make([]Effect, len(m.pending))
	copy(res, m.pending)
	return res
}

// Dispatch применяет событие пользователя. Это единственная точка изменения разговора.
func (m *Machine) Dispatch(ev Event) error {
	m.Flush()

	switch e := ev.(type) {
	case ProductSelected:
		m.selectProduct(e.Product)
		return nil
	case OptionChosen:
		return m.chooseOption(e.Option)
	case TextSent:
		return m.sendText(e.Text)
	default:
		return ErrUnknownEvent
	}
}

// Flush применяет все эффекты, срок которых наступил, и возвращает их количество.
func (m *Machine) Flush() int {
	now := m.now()
	applied := 0

	for len(m.pending) > 0 && !m.pending[0].Due.After(now) {
		eff := m.pending[0]
		m.pending = m.pending[1:]

		eff.Message.Timestamp = eff.Due
		m.messages = append(m.messages, eff.Message)
		if eff.Next != "" {
			m.state = eff.Next
		}
		if eff.Next == StateAwaitingTopicChoice {
			m.options = eff.Message.Options
		}
		applied++
	}

	return applied
}

// Snapshot возвращает копию видимого состояния чата.
func (m *Machine) Snapshot() Snapshot {
	m.Flush()

	msgs := make([]model.ChatMessage, len(m.messages))
	copy(msgs, m.messages)

	snap := Snapshot{
		State:    m.state,
		Messages: msgs,
		Typing:   len(m.pending) > 0,
	}
	if m.state == StateAwaitingTopicChoice {
		snap.Options = append([]string(nil), m.options...)
	}

	return snap
}

func (m *Machine) selectProduct(p model.Product) {
	m.messages = nil
	m.pending = nil
	m.options = nil

	m.messages = append(m.messages, m.message(Greeting(p.Name), model.SenderUser, nil))
	m.state = StateGreeted
	m.schedule(OptionsPrompt, TopicOptions(), StateAwaitingTopicChoice)
}

func (m *Machine) chooseOption(option string) error {
	if m.state != StateAwaitingTopicChoice {
		return ErrNoOptions
	}

	reply, ok := TopicReply(option)
	if !ok || !contains(m.options, option) {
		return ErrUnknownOption
	}

	m.messages = append(m.messages, m.message(option, model.SenderUser, nil))
	m.options = nil
	m.state = StateTopicAnswered
	m.schedule(reply, nil, "")

	return nil
}

func (m *Machine) sendText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if m.state == StateAwaitingTopicChoice || m.optionsPending() {
		return ErrAwaitingOption
	}

	m.messages = append(m.messages, m.message(text, model.SenderUser, nil))

	if isHelpRequest(text) {
		m.schedule(OptionsPrompt, TopicOptions(), StateAwaitingTopicChoice)
		return nil
	}

	m.state = StateFreeForm
	m.schedule(AcknowledgeText, nil, "")

	return nil
}

// optionsPending сообщает, что бот уже "печатает" список тем.
func (m *Machine) optionsPending() bool {
	for _, eff := range m.pending {
		if eff.Next == StateAwaitingTopicChoice {
			return true
		}
	}
	return false
}

func (m *Machine) schedule(text string, options []string, next State) {
	m.pending = append(m.pending, Effect{
		Due:     m.now().Add(m.delay),
		Message: m.message(text, model.SenderBot, options),
		Next:    next,
	})
}

func (m *Machine) message(text string, sender model.Sender, options []string) model.ChatMessage {
	return model.ChatMessage{
		ID:        m.newID(),
		Text:      text,
		Sender:    sender,
		Timestamp: m.now(),
		Options:   options,
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
