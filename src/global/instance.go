package global

import (
	instance "github.com/admiralbulldogtv/yapperqueue/src/instances"
)

type Instance struct {
	Redis     instance.Redis
	Mongo     instance.Mongo
	Synth     instance.Synthesizer
	Player    instance.Player
	Scheduler instance.Scheduler
}
