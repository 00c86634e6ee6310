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


package repository

import (
	"github.com/google/uuid"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
)

// Users is the repository of player balances.
type Users = Repository[uuid.UUID, *core.User]

// UserSpec describes the users collection.
func UserSpec() Spec[uuid.UUID, *core.User] {
	return Spec[uuid.UUID, *core.User]{
		Collection: core.Users,
		Keys:       UUIDKeys{},
		New:        core.NewUser,
		Identity:   core.UserID,
		Bind:       core.BindUser,
	}
}

// NewUsers creates the users repository over store.
func NewUsers(store *storage.DocumentStore, opts ...Option) (*Users, error) {
	return New(UserSpec(), store, opts...)
}
