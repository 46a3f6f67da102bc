package conf

import "github.com/spf13/viper"

// setDefaultConfig seeds Viper with the engine's factory defaults, mirroring
// the teacher's per-key viper.SetDefault block.
func setDefaultConfig() {
	viper.SetDefault("main.name", "ingen")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/ingen.log")
	viper.SetDefault("main.log.rotation", RotationSize)
	viper.SetDefault("main.log.maxsize", 10*1024*1024)

	viper.SetDefault("engine.samplerate", 48000)
	viper.SetDefault("engine.blocksize", 256)
	viper.SetDefault("engine.defaultinternalpoly", 1)
	viper.SetDefault("engine.maxinternalpoly", 128)
	viper.SetDefault("engine.workerthreads", 0)
	viper.SetDefault("engine.undostackdepth", 256)
	viper.SetDefault("engine.atomicbundletimeoutcycles", 250)
	viper.SetDefault("engine.eventringcapacity", 1024)

	viper.SetDefault("buffers.smallbuffersize", 4*1024)
	viper.SetDefault("buffers.mediumbuffersize", 64*1024)
	viper.SetDefault("buffers.largebuffersize", 1024*1024)
	viper.SetDefault("buffers.maxbufferspersize", 64)

	viper.SetDefault("driver.type", "portaudio")
	viper.SetDefault("driver.inputname", "")
	viper.SetDefault("driver.outputname", "")

	viper.SetDefault("midi.enabled", false)
	viper.SetDefault("midi.device", "")

	viper.SetDefault("lv2.bundlepath", []string{"/usr/lib/lv2", "/usr/local/lib/lv2"})

	viper.SetDefault("http.enabled", true)
	viper.SetDefault("http.listen", "127.0.0.1:8086")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.interval", "5s")
}
