package conf

import "fmt"

// validateSettings applies the sanity checks the engine needs before it will
// start a driver: bad values here must fail fast at startup rather than
// surface as a confusing COMPILATION_FAILED or ALLOCATION_FAILED later.
func validateSettings(s *Settings) error {
	if s.Engine.SampleRate <= 0 {
		return fmt.Errorf("engine.samplerate must be positive, got %d", s.Engine.SampleRate)
	}
	if s.Engine.BlockSize <= 0 {
		return fmt.Errorf("engine.blocksize must be positive, got %d", s.Engine.BlockSize)
	}
	if s.Engine.DefaultInternalPoly < 1 || s.Engine.DefaultInternalPoly > s.Engine.MaxInternalPoly {
		return fmt.Errorf("engine.defaultinternalpoly %d out of range [1, %d]",
			s.Engine.DefaultInternalPoly, s.Engine.MaxInternalPoly)
	}
	if s.Engine.MaxInternalPoly < 1 || s.Engine.MaxInternalPoly > 128 {
		return fmt.Errorf("engine.maxinternalpoly %d out of range [1, 128]", s.Engine.MaxInternalPoly)
	}
	if s.Engine.EventRingCapacity <= 0 {
		return fmt.Errorf("engine.eventringcapacity must be positive, got %d", s.Engine.EventRingCapacity)
	}
	if s.Buffers.SmallBufferSize <= 0 || s.Buffers.MediumBufferSize <= s.Buffers.SmallBufferSize ||
		s.Buffers.LargeBufferSize <= s.Buffers.MediumBufferSize {
		return fmt.Errorf("buffers.* tier sizes must be strictly increasing (small < medium < large)")
	}
	switch s.Driver.Type {
	case "portaudio", "null":
	default:
		return fmt.Errorf("driver.type %q not recognized (want \"portaudio\" or \"null\")", s.Driver.Type)
	}
	return nil
}
