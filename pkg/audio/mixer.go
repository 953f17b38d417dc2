// Package audio is the host audio capability used by the playback scheduler.
// This file implements the Mixer, which plays decoded samples through a shared Ebitengine audio context.
package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/zurustar/dtxview/pkg/playback"
)

// player is the part of *audio.Player the mixer uses.
type player interface {
	Play()
	Close() error
	SetVolume(volume float64)
	SetPosition(offset time.Duration) error
	IsPlaying() bool
}

type sample struct {
	key    string
	pcm    []byte
	volume float64
}

type voice struct {
	player  player
	volume  float64
	timer   *time.Timer // pending delayed start, nil once started
	started bool
}

// Mixer implements playback.Output on top of Ebitengine/audio.
// Every Play call gets its own player; Ebitengine/audio mixes them.
//
// Samples are decoded once at load time and kept as PCM, so starting a voice
// never touches the file system or a decoder.
type Mixer struct {
	audioCtx  *audio.Context
	newPlayer func(pcm []byte) player

	samples   []sample // handle n is samples[n-1]
	keys      map[string]playback.Sample
	voices    map[playback.Voice]*voice
	nextVoice playback.Voice

	muted  bool
	volume float64

	log *slog.Logger
	mu  sync.Mutex
}

// MixerOption configures a Mixer.
type MixerOption func(*Mixer)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) MixerOption {
	return func(m *Mixer) {
		m.log = log
	}
}

// WithVolume sets the master volume (0 to 1).
func WithVolume(volume float64) MixerOption {
	return func(m *Mixer) {
		m.volume = clamp(volume, 0, 1)
	}
}

// WithMuted starts the mixer muted.
func WithMuted(muted bool) MixerOption {
	return func(m *Mixer) {
		m.muted = muted
	}
}

// NewMixer creates a mixer on the given audio context.
// The audio context should be shared with every other audio component;
// Ebitengine allows only one per process.
//
// Parameters:
//   - audioCtx: Ebitengine audio context (nil uses the current one, creating it if needed)
//   - opts: Logger, volume and mute options
//
// Returns:
//   - *Mixer: The initialized mixer
func NewMixer(audioCtx *audio.Context, opts ...MixerOption) *Mixer {
	if audioCtx == nil {
		audioCtx = audio.CurrentContext()
	}
	if audioCtx == nil {
		audioCtx = audio.NewContext(SampleRate)
	}
	m := newMixer(func(pcm []byte) player {
		return audioCtx.NewPlayerFromBytes(pcm)
	}, opts...)
	m.audioCtx = audioCtx
	return m
}

func newMixer(factory func(pcm []byte) player, opts ...MixerOption) *Mixer {
	m := &Mixer{
		newPlayer: factory,
		keys:      make(map[string]playback.Sample),
		voices:    make(map[playback.Voice]*voice),
		volume:    1,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load decodes data and registers it under key. Loading the same key again
// returns the existing handle without decoding.
//
// Parameters:
//   - key: Load key; its extension selects the decoder (see SampleKey)
//   - data: The raw file contents (wav, mp3 or ogg)
//
// Returns:
//   - playback.Sample: The sample handle
//   - error: ErrUnsupportedFormat or ErrInvalidFormat
func (m *Mixer) Load(key string, data []byte) (playback.Sample, error) {
	m.mu.Lock()
	if s, ok := m.keys[key]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	pcm, err := DecodeFile(key, data)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return m.LoadPCM(key, pcm)
}

// LoadPCM registers already decoded 16-bit stereo PCM under key.
func (m *Mixer) LoadPCM(key string, pcm []byte) (playback.Sample, error) {
	if len(pcm) == 0 || len(pcm)%BytesPerFrame != 0 {
		return 0, fmt.Errorf("%w: %s: %d bytes of PCM", ErrInvalidFormat, key, len(pcm))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.keys[key]; ok {
		return s, nil
	}
	m.samples = append(m.samples, sample{key: key, pcm: pcm, volume: 1})
	s := playback.Sample(len(m.samples))
	m.keys[key] = s
	m.log.Debug("Sample loaded", "key", key, "duration", pcmDuration(pcm))
	return s, nil
}

// SetSampleVolume scales every future voice of s (0 to 1).
func (m *Mixer) SetSampleVolume(s playback.Sample, volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	smp, err := m.sampleLocked(s)
	if err != nil {
		return err
	}
	smp.volume = clamp(volume, 0, 1)
	return nil
}

func (m *Mixer) sampleLocked(s playback.Sample) (*sample, error) {
	i := int(s) - 1
	if i < 0 || i >= len(m.samples) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSample, s)
	}
	return &m.samples[i], nil
}

// Play starts a new voice of s.
// A positive opts.Seek starts that far into the sample; a positive opts.Delay
// starts the voice after that long. Both may be combined.
//
// Parameters:
//   - s: A handle returned by Load or LoadPCM
//   - opts: Delay and seek
//
// Returns:
//   - playback.Voice: The voice handle for Stop
//   - error: ErrUnknownSample, or the player's seek error
func (m *Mixer) Play(s playback.Sample, opts playback.PlayOptions) (playback.Voice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Clean up finished players before adding new ones
	m.cleanupLocked()

	smp, err := m.sampleLocked(s)
	if err != nil {
		return 0, err
	}

	p := m.newPlayer(smp.pcm)
	v := &voice{player: p, volume: smp.volume}
	p.SetVolume(m.effectiveVolume(v))

	if opts.Seek > 0 {
		if opts.Seek >= pcmDuration(smp.pcm) {
			// already over; keep a handle so Stop stays valid
			p.Close()
			v.started = true
			v.player = nil
		} else if err := p.SetPosition(opts.Seek); err != nil {
			p.Close()
			return 0, fmt.Errorf("failed to seek %s to %v: %w", smp.key, opts.Seek, err)
		}
	}

	m.nextVoice++
	id := m.nextVoice
	m.voices[id] = v

	switch {
	case v.player == nil:
	case opts.Delay > 0:
		v.timer = time.AfterFunc(opts.Delay, func() { m.start(id, v) })
	default:
		v.started = true
		p.Play()
	}
	return id, nil
}

// start runs on the delay timer's goroutine.
func (m *Mixer) start(id playback.Voice, v *voice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voices[id] != v || v.started {
		return
	}
	v.timer = nil
	v.started = true
	v.player.Play()
}

// Stop cancels a pending voice or stops a playing one. Unknown or already
// stopped voices are ignored.
func (m *Mixer) Stop(id playback.Voice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.voices[id]; ok {
		m.closeLocked(v)
		delete(m.voices, id)
	}
}

// StopAll stops every voice.
func (m *Mixer) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range m.voices {
		m.closeLocked(v)
		delete(m.voices, id)
	}
}

func (m *Mixer) closeLocked(v *voice) {
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	if v.player != nil {
		if err := v.player.Close(); err != nil {
			m.log.Debug("Player close failed", "error", err)
		}
		v.player = nil
	}
}

// SetMuted mutes or unmutes every current and future voice.
func (m *Mixer) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	for _, v := range m.voices {
		if v.player != nil {
			v.player.SetVolume(m.effectiveVolume(v))
		}
	}
}

// IsMuted returns whether the mixer is muted.
func (m *Mixer) IsMuted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *Mixer) effectiveVolume(v *voice) float64 {
	if m.muted {
		return 0
	}
	return m.volume * v.volume
}

// Active returns the number of voices that are pending or playing.
// This is useful for testing and debugging.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupLocked()
	return len(m.voices)
}

// Update is called from the game loop to release finished players.
func (m *Mixer) Update() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupLocked()
}

// cleanupLocked removes voices that have finished playing.
// Must be called with m.mu held.
func (m *Mixer) cleanupLocked() {
	for id, v := range m.voices {
		if !v.started {
			continue
		}
		if v.player != nil && v.player.IsPlaying() {
			continue
		}
		m.closeLocked(v)
		delete(m.voices, id)
	}
}

// Samples returns the number of loaded samples.
func (m *Mixer) Samples() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

// Context returns the audio context used by this mixer.
// This can be used to share the context with other audio components.
func (m *Mixer) Context() *audio.Context {
	return m.audioCtx
}

func pcmDuration(pcm []byte) time.Duration {
	frames := len(pcm) / BytesPerFrame
	return time.Duration(frames) * time.Second / SampleRate
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
