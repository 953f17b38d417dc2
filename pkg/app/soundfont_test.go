package app

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/zurustar/dtxview/pkg/fileutil"
	"github.com/zurustar/dtxview/pkg/library"
)

var dummySoundFont = []byte("RIFF....sfbk")

func TestFindSoundFont_Configured(t *testing.T) {
	tmpDir := t.TempDir()
	sfPath := filepath.Join(tmpDir, "drums.sf2")
	if err := os.WriteFile(sfPath, dummySoundFont, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	// 指定されたファイルは埋め込みより優先される
	embedFS := fstest.MapFS{"soundfonts/" + DefaultSoundFontName: &fstest.MapFile{Data: dummySoundFont}}
	result := findSoundFont(embedFS, sfPath, nil)
	if result == nil {
		t.Fatal("Expected to find the configured SoundFont")
	}
	if result.Path != sfPath {
		t.Errorf("Expected path %s, got %s", sfPath, result.Path)
	}
	if result.FileSystem != nil {
		t.Error("Expected nil FileSystem for external file")
	}
}

func TestFindSoundFont_ConfiguredMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	embedFS := fstest.MapFS{"soundfonts/" + DefaultSoundFontName: &fstest.MapFile{Data: dummySoundFont}}
	result := findSoundFont(embedFS, "/no/such/file.sf2", nil)
	if result == nil {
		t.Fatal("Expected to fall back to the embedded SoundFont")
	}
	if !result.IsEmbedded {
		t.Error("Expected embedded SoundFont")
	}
}

func TestFindSoundFont_Embedded(t *testing.T) {
	t.Chdir(t.TempDir())

	embedFS := fstest.MapFS{"soundfonts/" + DefaultSoundFontName: &fstest.MapFile{Data: dummySoundFont}}
	result := findSoundFont(embedFS, "", nil)
	if result == nil {
		t.Fatal("Expected to find embedded SoundFont")
	}
	if !result.IsEmbedded {
		t.Error("Expected embedded SoundFont")
	}
	if result.Path != DefaultSoundFontName {
		t.Errorf("Expected path %s, got %s", DefaultSoundFontName, result.Path)
	}

	data, err := result.FileSystem.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("Failed to read through FileSystem: %v", err)
	}
	if string(data) != string(dummySoundFont) {
		t.Error("Unexpected SoundFont contents")
	}
}

func TestFindSoundFont_EmptyEmbeddedFile(t *testing.T) {
	t.Chdir(t.TempDir())

	embedFS := fstest.MapFS{"soundfonts/" + DefaultSoundFontName: &fstest.MapFile{Data: nil}}
	if result := findSoundFont(embedFS, "", nil); result != nil {
		t.Errorf("Expected nil for an empty SoundFont, got %+v", result)
	}
}

func TestFindSoundFont_InSet(t *testing.T) {
	t.Chdir(t.TempDir())

	setFS := fstest.MapFS{
		"demo/set.def":            &fstest.MapFile{Data: []byte("#L1LABEL BASIC\n#L1FILE bas.dtx\n")},
		"demo/generaluser-gs.sf2": &fstest.MapFile{Data: dummySoundFont},
		"demo/bas.dtx":            &fstest.MapFile{Data: []byte("#BPM 120\n")},
	}
	set := &library.Set{Name: "demo", FS: fileutil.NewPackFS(setFS, "demo")}

	result := findSoundFont(nil, "", set)
	if result == nil {
		t.Fatal("Expected to find the SoundFont inside the set (case-insensitive)")
	}
	if result.FileSystem != set.FS {
		t.Error("Expected the set's FileSystem")
	}
	if result.IsEmbedded {
		t.Error("Expected external set")
	}
}

func TestFindSoundFont_CurrentDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, DefaultSoundFontName), dummySoundFont, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	t.Chdir(tmpDir)

	result := findSoundFont(fstest.MapFS{}, "", nil)
	if result == nil {
		t.Fatal("Expected to find SoundFont in current directory")
	}
	if result.IsEmbedded {
		t.Error("Expected external file, got embedded")
	}
	if result.FileSystem != nil {
		t.Error("Expected nil FileSystem for external file")
	}
	if result.Path != DefaultSoundFontName {
		t.Errorf("Expected path %s, got %s", DefaultSoundFontName, result.Path)
	}
}

func TestFindSoundFont_NotFound(t *testing.T) {
	t.Chdir(t.TempDir())

	if result := findSoundFont(fstest.MapFS{}, "", nil); result != nil {
		t.Errorf("Expected nil when no SoundFont exists, got %+v", result)
	}
}
