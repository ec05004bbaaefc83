/*
   Copyright 2025 The DIRPX Authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package component

import (
	"context"
	"errors"

	"dirpx.dev/dxcomp/dxcore/selector"
)

// ErrNoStore is returned by Load, Get and Save on a scope without a Store.
var ErrNoStore = errors.New("dxcomp: scope has no store")

// Store is the persistence collaborator of a scope. It never sees live
// instances, only plain tagged trees addressed by type name and primary
// identifier.
type Store interface {
	// Fetch returns the record of typeName identified by id, restricted to
	// the fields selected by sel. Tags and the primary identifier MUST be
	// present in the result. A missing record MUST be reported as an
	// *errors.NotFoundError.
	Fetch(ctx context.Context, typeName string, id any, sel selector.Selector) (map[string]any, error)

	// Persist stores tree as the record of typeName identified by id,
	// merging it into an existing record.
	Persist(ctx context.Context, typeName string, id any, tree map[string]any) error
}
