// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tunables

import (
	"context"
	"heatdoors/pkg/logger"
)

// Bootstrap picks the starting block: a valid NVM block wins over the YAML
// file, which wins over the defaults. nvm may be nil. A rejected YAML file
// is reported but does not prevent the NVM block from loading.
func Bootstrap(yamlPath string, nvm *NVM) (Params, string, error) {
	log := logger.New("Tunables")

	p, src := Default(), yamlPath
	fromFile, fileErr := LoadFile(yamlPath)
	if fileErr != nil {
		src = "defaults"
	} else {
		p = fromFile
	}
	if nvm == nil {
		return p, src, fileErr
	}

	stored, ok, err := nvm.Load()
	if err != nil {
		log.Warn("ignoring nvm block: %v", err)
		return p, src, fileErr
	}
	if !ok {
		return p, src, fileErr
	}
	return stored, "nvm", fileErr
}

// Reloader re-reads the YAML file whenever reload fires and pushes it
// through the store's update boundary.
type Reloader struct {
	store  *Store
	path   string
	reload <-chan struct{}
	log    *logger.Logger
}

func NewReloader(store *Store, path string, reload <-chan struct{}) *Reloader {
	return &Reloader{
		store:  store,
		path:   path,
		reload: reload,
		log:    logger.New("Tunables Reload"),
	}
}

func (r *Reloader) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.reload:
			r.Reload()
		}
	}
}

// Reload applies the file once; errors leave the active block in place.
func (r *Reloader) Reload() error {
	p, err := LoadFile(r.path)
	if err != nil {
		r.log.Error("reload failed, keeping active block: %v", err)
		return err
	}
	return r.store.Update(p)
}
