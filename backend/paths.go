package backend

import (
	"os"
	"path/filepath"
)

// Process-private working area under the platform temp root.
// Layout mirrors what the converter needs at runtime:
//
//	downloads/   raw audio fetched from streaming platforms
//	temp_files/  scratch copies handed to the encoder
//	thumbnails/  cover art candidates downloaded mid-run
//	logs/        timestamped run logs

// AppTempDir returns the root of the converter's temp tree.
func AppTempDir() string {
	return filepath.Join(os.TempDir(), "mscradio")
}

// DownloadsDir returns the directory raw downloads land in, creating it
// on demand.
func DownloadsDir() (string, error) {
	return ensureSubdir("downloads")
}

// TempFilesDir returns the scratch directory used by the transcoder.
func TempFilesDir() (string, error) {
	return ensureSubdir("temp_files")
}

// ThumbnailsDir returns the directory thumbnail downloads land in.
func ThumbnailsDir() (string, error) {
	return ensureSubdir("thumbnails")
}

// LogsDir returns the directory run logs are written to.
func LogsDir() (string, error) {
	return ensureSubdir("logs")
}

func ensureSubdir(name string) (string, error) {
	dir := filepath.Join(AppTempDir(), name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() string {
	configDir, _ := os.UserConfigDir()
	return filepath.Join(configDir, "mscradio", "config.ini")
}

// GetDataPath returns the path to the app data directory.
func GetDataPath() string {
	configDir, _ := os.UserConfigDir()
	return filepath.Join(configDir, "mscradio")
}
