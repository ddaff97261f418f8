// Package store holds the authoritative in-memory state for users, channels,
// and messages. A single Store instance is created at process start and shared
// by the hub and the REST handlers; all three collections are guarded by one
// mutex so they behave as a single critical section.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Sentinel errors returned by Store operations.
var (
	ErrDuplicateUsername    = errors.New("store: username already taken")
	ErrDuplicateChannelName = errors.New("store: channel name already taken")
	ErrUserNotFound         = errors.New("store: user not found")
	ErrChannelNotFound      = errors.New("store: channel not found")
)

// defaultPassword is assigned when a user is created without one.
const defaultPassword = "default-password"

// DefaultMessageLimit caps how many messages a channel history read returns
// when the caller does not ask for a specific limit.
const DefaultMessageLimit = 50

// User is a chat participant. OnlineStatus starts false and flips true only
// on a successful connection claim.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	Initials     string `json:"initials"`
	Color        string `json:"color"`
	OnlineStatus bool   `json:"onlineStatus"`
}

// Channel is a named topic grouping messages. Channels are never mutated or
// deleted after creation.
type Channel struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	IsDirectMessage bool   `json:"isDirectMessage"`
}

// Message is one persisted chat message. The id and timestamp are assigned by
// the store in enqueue order, so both are monotonically non-decreasing within
// a channel.
type Message struct {
	ID        int       `json:"id"`
	Content   string    `json:"content"`
	UserID    int       `json:"userId"`
	ChannelID int       `json:"channelId"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageWithAuthor is a Message joined with its authoring user, the shape
// the channel-history read path returns.
type MessageWithAuthor struct {
	Message
	User User `json:"user"`
}

// Store is the in-memory aggregate. Id counters never repeat or wrap even if
// entities were hypothetically removed; nothing in this core removes them.
type Store struct {
	mu               sync.RWMutex
	users            map[int]User
	channels         map[int]Channel
	messages         map[int]Message
	userIDCounter    int
	channelIDCounter int
	messageIDCounter int
	userOrder        []int
	channelOrder     []int
}

// New creates a Store seeded with the default channels so a client always has
// somewhere to land.
func New() *Store {
	s := &Store{
		users:            make(map[int]User),
		channels:         make(map[int]Channel),
		messages:         make(map[int]Message),
		userIDCounter:    1,
		channelIDCounter: 1,
		messageIDCounter: 1,
	}

	seeds := []Channel{
		{Name: "general", Description: "General discussions for the team"},
		{Name: "random", Description: "Random topics and conversations"},
		{Name: "support", Description: "Get help and support here"},
	}
	for _, c := range seeds {
		// Seed names are distinct, so creation cannot fail here.
		_, _ = s.CreateChannel(c.Name, c.Description, false)
	}

	return s
}

// CreateUser adds a new user. An empty password is replaced with a default
// placeholder credential. Fails with ErrDuplicateUsername if the username is
// already taken.
func (s *Store) CreateUser(username, password, initials, color string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return User{}, ErrDuplicateUsername
		}
	}

	if password == "" {
		password = defaultPassword
	}

	user := User{
		ID:       s.userIDCounter,
		Username: username,
		Password: password,
		Initials: initials,
		Color:    color,
	}
	s.userIDCounter++
	s.users[user.ID] = user
	s.userOrder = append(s.userOrder, user.ID)

	return user, nil
}

// User returns the user with the given id.
func (s *Store) User(id int) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// UserByUsername returns the user with the given username.
func (s *Store) UserByUsername(username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// SetOnlineStatus flips a user's online flag and returns the updated user.
func (s *Store) SetOnlineStatus(id int, online bool) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	user.OnlineStatus = online
	s.users[id] = user
	return user, nil
}

// Users returns all users in insertion order.
func (s *Store) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		users = append(users, s.users[id])
	}
	return users
}

// CreateChannel adds a new channel. Fails with ErrDuplicateChannelName if the
// name is already taken.
func (s *Store) CreateChannel(name, description string, isDirectMessage bool) (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.channels {
		if c.Name == name {
			return Channel{}, ErrDuplicateChannelName
		}
	}

	channel := Channel{
		ID:              s.channelIDCounter,
		Name:            name,
		Description:     description,
		IsDirectMessage: isDirectMessage,
	}
	s.channelIDCounter++
	s.channels[channel.ID] = channel
	s.channelOrder = append(s.channelOrder, channel.ID)

	return channel, nil
}

// Channel returns the channel with the given id.
func (s *Store) Channel(id int) (Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channel, ok := s.channels[id]
	if !ok {
		return Channel{}, ErrChannelNotFound
	}
	return channel, nil
}

// Channels returns all channels in insertion order.
func (s *Store) Channels() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channels := make([]Channel, 0, len(s.channelOrder))
	for _, id := range s.channelOrder {
		channels = append(channels, s.channels[id])
	}
	return channels
}

// CreateMessage persists a message after checking that both the author and
// the channel exist, so no message is ever orphaned.
func (s *Store) CreateMessage(content string, userID, channelID int) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return Message{}, ErrUserNotFound
	}
	if _, ok := s.channels[channelID]; !ok {
		return Message{}, ErrChannelNotFound
	}

	message := Message{
		ID:        s.messageIDCounter,
		Content:   content,
		UserID:    userID,
		ChannelID: channelID,
		Timestamp: time.Now(),
	}
	s.messageIDCounter++
	s.messages[message.ID] = message

	return message, nil
}

// MessagesByChannel returns the most recent limit messages of a channel,
// ordered ascending by timestamp with the authoring user joined in. A limit
// of zero or less falls back to DefaultMessageLimit. Unknown channels yield
// an empty slice.
func (s *Store) MessagesByChannel(channelID, limit int) []MessageWithAuthor {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	channelMessages := make([]Message, 0)
	for _, m := range s.messages {
		if m.ChannelID == channelID {
			channelMessages = append(channelMessages, m)
		}
	}
	sort.Slice(channelMessages, func(i, j int) bool {
		if channelMessages[i].Timestamp.Equal(channelMessages[j].Timestamp) {
			return channelMessages[i].ID < channelMessages[j].ID
		}
		return channelMessages[i].Timestamp.Before(channelMessages[j].Timestamp)
	})

	if len(channelMessages) > limit {
		channelMessages = channelMessages[len(channelMessages)-limit:]
	}

	result := make([]MessageWithAuthor, 0, len(channelMessages))
	for _, m := range channelMessages {
		user, ok := s.users[m.UserID]
		if !ok {
			continue
		}
		result = append(result, MessageWithAuthor{Message: m, User: user})
	}
	return result
}
