package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/spindleworks/novem/errors"
	"github.com/spindleworks/novem/logger"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before
// modifying config
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Rotate: .back3 -> delete, .back2 -> .back3, .back1 -> .back2, current -> .back1
	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Deletion failures do not block the save
		logger.Warnw("Failed to delete old config backup",
			"path", back3,
			"error", err)
	}

	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, 0644); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// Save writes key/value updates into the user config file, creating it if
// needed. Existing settings not named in updates are preserved.
func Save(updates map[string]interface{}) error {
	configPath := UserConfigPath()
	if configPath == "" {
		return errors.New("could not determine home directory")
	}
	return SaveTo(configPath, updates)
}

// SaveTo writes key/value updates into the config file at path, with a
// rotating backup of the previous contents.
func SaveTo(configPath string, updates map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	var settings map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, &settings); err != nil {
			return errors.Wrap(err, "failed to parse existing config")
		}
	} else {
		settings = make(map[string]interface{})
	}

	for key, value := range updates {
		settings[key] = value
	}

	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Mark this as our own write to prevent reload loops
	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config")
	}

	return nil
}
