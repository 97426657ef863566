package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// TextFiles caches the text served at connection lifecycle points. Files
// are reloaded automatically when they change on disk.
type TextFiles struct {
	mu    sync.RWMutex
	texts map[string]string
}

// trackedFiles maps cache keys to filenames and descriptions.
var trackedFiles = []struct {
	Key  string
	Name string
	Desc string
}{
	{"welcome", "welcome.txt", "pre-login welcome screen"},
	{"motd", "motd.txt", "post-login message of the day"},
	{"guest", "guest.txt", "guest greeting"},
	{"quit", "quit.txt", "farewell message"},
}

// loadFile reads a single text file, returning empty string on any error.
func loadFile(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return string(data)
}

// LoadTextFiles reads text files from dir and returns a populated cache.
// Missing files result in empty strings (no error).
func LoadTextFiles(dir string) *TextFiles {
	tf := &TextFiles{texts: make(map[string]string)}
	tf.loadAll(dir)
	return tf
}

func (tf *TextFiles) loadAll(dir string) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	count := 0
	for _, t := range trackedFiles {
		tf.texts[t.Key] = loadFile(dir, t.Name)
		if tf.texts[t.Key] != "" {
			count++
		}
	}
	log.Printf("Loaded %d text files from %s", count, dir)
}

// Get returns the cached text for a key ("welcome", "motd", "guest",
// "quit"), or empty string.
func (tf *TextFiles) Get(key string) string {
	tf.mu.RLock()
	defer tf.mu.RUnlock()
	return tf.texts[key]
}

// textOrEmpty fetches a cached text, tolerating a game without a text dir.
func (g *Game) textOrEmpty(key string) string {
	if g.Texts == nil {
		return ""
	}
	return g.Texts.Get(key)
}

// WatchTextFiles starts an fsnotify watcher on the text directory and
// reloads changed files in place, so edits take effect without a restart.
// Connected admins are notified of the reload.
func (g *Game) WatchTextFiles() {
	if g.TextDir == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("WARNING: Could not start text file watcher: %v", err)
		return
	}

	tracked := make(map[string]string) // filename -> key
	for _, t := range trackedFiles {
		tracked[t.Name] = t.Key
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				name := filepath.Base(ev.Name)
				key, ok := tracked[name]
				if !ok {
					continue
				}
				g.Texts.mu.Lock()
				g.Texts.texts[key] = loadFile(g.TextDir, name)
				g.Texts.mu.Unlock()
				log.Printf("Text file reloaded: %s", name)
				g.World.NotifyAdmins(fmt.Sprintf("Text file reloaded from disk: %s", name))

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Text file watcher error: %v", err)
			}
		}
	}()

	if err := watcher.Add(g.TextDir); err != nil {
		log.Printf("WARNING: Could not watch text directory %s: %v", g.TextDir, err)
		watcher.Close()
		return
	}
	log.Printf("Watching text directory for changes: %s", g.TextDir)
}
