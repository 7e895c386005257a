// Copyright 2024 Sorint.lab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied
// See the License for the specific language governing permissions and
// limitations under the License.

package mail

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

const maxLogMessages = 100

// LogSender logs the messages instead of sending them and keeps the last
// ones in memory.
type LogSender struct {
	log zerolog.Logger

	mu       sync.Mutex
	messages []*Message
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, m *Message) error {
	s.log.Info().Str("from", m.From).Str("to", m.To).Str("subject", m.Subject).Str("body", m.Body).Msg("mail")

	s.mu.Lock()
	defer s.mu.Unlock()

	mc := *m
	s.messages = append(s.messages, &mc)
	if len(s.messages) > maxLogMessages {
		s.messages = s.messages[len(s.messages)-maxLogMessages:]
	}

	return nil
}

// Messages returns the kept messages, oldest first.
func (s *LogSender) Messages() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]*Message, len(s.messages))
	copy(messages, s.messages)

	return messages
}

// LastMessageTo returns the last message sent to the recipient.
func (s *LogSender) LastMessageTo(to string) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].To == to {
			return s.messages[i]
		}
	}

	return nil
}
