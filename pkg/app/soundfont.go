package app

import (
	"io/fs"
	"os"

	"github.com/zurustar/dtxview/pkg/fileutil"
	"github.com/zurustar/dtxview/pkg/library"
)

// SoundFontLocation represents the location of a SoundFont file.
type SoundFontLocation struct {
	// Path is the path to the SoundFont file
	Path string
	// FileSystem is the FileSystem to use for loading (nil for external files)
	FileSystem fileutil.FileSystem
	// IsEmbedded indicates whether the SoundFont is embedded
	IsEmbedded bool
}

// DefaultSoundFontName is the default SoundFont filename to search for.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// soundFontDir is the directory of bundled SoundFonts in the embedded FS.
const soundFontDir = "soundfonts"

// findSoundFont searches for the SoundFont used for placeholder hits in the following order:
// 1. The configured path (--soundfont, DTXVIEW_SOUNDFONT or the settings file)
// 2. Embedded soundfonts directory
// 3. The chart set itself (directory or archive)
// 4. Current directory (external)
//
// Parameters:
//   - embedFS: The embedded file system (may be nil)
//   - configured: Path given by the user, empty if none
//   - set: The chart set being opened (may be nil)
//
// Returns:
//   - *SoundFontLocation: Location of the SoundFont file, or nil if not found
func findSoundFont(embedFS fs.FS, configured string, set *library.Set) *SoundFontLocation {
	// 1. 明示的に指定されたファイル
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return &SoundFontLocation{Path: configured}
		}
	}

	// 2. 埋め込みのsoundfontsディレクトリ
	if embedFS != nil {
		if data, err := fs.ReadFile(embedFS, soundFontDir+"/"+DefaultSoundFontName); err == nil && len(data) > 0 {
			return &SoundFontLocation{
				Path:       DefaultSoundFontName, // FileSystemのベースパスが"soundfonts"なので、ファイル名だけ
				FileSystem: fileutil.NewPackFS(embedFS, soundFontDir),
				IsEmbedded: true,
			}
		}
	}

	// 3. セットのディレクトリまたはアーカイブ
	if set != nil && set.FS != nil {
		if data, err := set.FS.ReadFile(DefaultSoundFontName); err == nil && len(data) > 0 {
			return &SoundFontLocation{
				Path:       DefaultSoundFontName,
				FileSystem: set.FS,
				IsEmbedded: set.IsEmbedded,
			}
		}
	}

	// 4. カレントディレクトリ
	if _, err := os.Stat(DefaultSoundFontName); err == nil {
		return &SoundFontLocation{Path: DefaultSoundFontName}
	}

	return nil
}
