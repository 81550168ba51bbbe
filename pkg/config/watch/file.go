// Copyright The NRI Plugins Authors. All Rights Reserved.
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

package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ParseFunc parses the contents of a watched file.
type ParseFunc[T any] func(data []byte) (T, error)

// FileWatch watches a single file. Its directory is watched so that the
// file can be created, replaced or removed.
type FileWatch[T any] struct {
	dir      string
	file     string
	parse    ParseFunc[T]
	fsw      *fsnotify.Watcher
	resultC  chan Event[T]
	stopOnce sync.Once
	stopC    chan struct{}
	doneC    chan struct{}
}

// File starts watching file. If the file exists, its parsed contents are
// delivered as the first event.
func File[T any](file string, parse ParseFunc[T]) (*FileWatch[T], error) {
	absPath, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err = fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	w := &FileWatch[T]{
		dir:     filepath.Dir(absPath),
		file:    filepath.Base(absPath),
		parse:   parse,
		fsw:     fsw,
		resultC: make(chan Event[T], eventQueueSize),
		stopC:   make(chan struct{}),
		doneC:   make(chan struct{}),
	}

	obj, err := w.read()
	switch {
	case err == nil:
		w.send(Event[T]{Type: Added, Object: obj})
	case !errors.Is(err, fs.ErrNotExist):
		fsw.Close()
		return nil, err
	}

	go w.run()

	return w, nil
}

// Stop stops the watch and closes its result channel.
func (w *FileWatch[T]) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopC)
		<-w.doneC
	})
}

// ResultChan returns the channel of watch events.
func (w *FileWatch[T]) ResultChan() <-chan Event[T] {
	return w.resultC
}

func (w *FileWatch[T]) run() {
	defer func() {
		if err := w.fsw.Close(); err != nil {
			log.Warn("%s: failed to close fsnotify watcher: %v", w.name(), err)
		}
		close(w.resultC)
		close(w.doneC)
	}()

	errC := w.fsw.Errors
	for {
		select {
		case <-w.stopC:
			return

		case err, ok := <-errC:
			if !ok {
				errC = nil
				continue
			}
			log.Error("%s: watch error: %v", w.name(), err)

		case e, ok := <-w.fsw.Events:
			if !ok {
				w.send(Event[T]{Type: Error, Err: errors.New("failed to receive fsnotify event")})
				return
			}
			log.Debug("%s: got event %+v", w.name(), e)

			if filepath.Base(e.Name) != w.file {
				continue
			}

			switch {
			case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
				obj, err := w.read()
				if err != nil {
					log.Warn("%s: ignoring update: %v", w.name(), err)
					continue
				}
				w.send(Event[T]{Type: Added, Object: obj})

			case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.send(Event[T]{Type: Deleted})
			}
		}
	}
}

func (w *FileWatch[T]) send(e Event[T]) {
	select {
	case w.resultC <- e:
	default:
		log.Warn("%s: failed to deliver %s event", w.name(), e.Type)
	}
}

func (w *FileWatch[T]) read() (T, error) {
	var none T
	file := filepath.Join(w.dir, w.file)
	data, err := os.ReadFile(file)
	if err != nil {
		return none, err
	}
	obj, err := w.parse(data)
	if err != nil {
		return none, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	return obj, nil
}

func (w *FileWatch[T]) name() string {
	return "filewatch " + filepath.Join(w.dir, w.file)
}
