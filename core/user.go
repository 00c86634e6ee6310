// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is the per-player economy document.
// UUID is derived from the document path and is not part of the payload.
type User struct {
	UUID    uuid.UUID       `doc:"-"`
	Balance decimal.Decimal `doc:"balance"`
}

// NewUser returns the default document for a never-seen player.
func NewUser(id uuid.UUID) *User {
	return &User{UUID: id, Balance: decimal.Zero}
}

// UserID returns the identity of a user document.
func UserID(u *User) uuid.UUID {
	return u.UUID
}

// BindUser restores the identity of a decoded user.
func BindUser(id uuid.UUID, u *User) {
	u.UUID = id
}
