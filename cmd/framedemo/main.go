// Command framedemo draws spinning triangles through a compiled frame on a GLFW window.
// Space pauses the animation, which switches the frame to its dimmed branch. Keys 1 and 2 hide or show
// each triangle. Escape quits.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/frame"
	"github.com/Carmen-Shannon/oxy-frame/engine/game_object"
	"github.com/Carmen-Shannon/oxy-frame/engine/session"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
	"github.com/Carmen-Shannon/oxy-frame/engine/window/glfw_backend"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

func main() {
	configPath := flag.String("config", "", "TOML file describing the window format")
	maxFrames := flag.Uint64("frames", 0, "stop after this many frames (0 = until the window closes)")
	profile := flag.Bool("profile", false, "log frame statistics every second")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*configPath, *maxFrames, *profile); err != nil {
		fmt.Fprintln(os.Stderr, "framedemo:", err)
		os.Exit(1)
	}
}

func run(configPath string, maxFrames uint64, profile bool) error {
	format := window.NewFormat(window.WithTitle("oxy-frame demo"), window.WithWidth(800), window.WithHeight(600))
	if configPath != "" {
		var err error
		if format, err = window.LoadFormat(configPath); err != nil {
			return err
		}
	}

	factory, err := glfw_backend.NewFactory()
	if err != nil {
		return err
	}

	objects := []game_object.GameObject{
		game_object.NewGameObject(
			game_object.WithID(1),
			game_object.WithPosition(mgl32.Vec3{-0.7, 0, 0}),
			game_object.WithRotationSpeed(mgl32.Vec3{0, 0, mgl32.DegToRad(90)}),
		),
		game_object.NewGameObject(
			game_object.WithID(2),
			game_object.WithPosition(mgl32.Vec3{0.7, 0, 0}),
			game_object.WithScale(mgl32.Vec3{0.6, 0.6, 0.6}),
			game_object.WithRotationSpeed(mgl32.Vec3{0, mgl32.DegToRad(45), mgl32.DegToRad(-180)}),
		),
	}

	return session.Run(factory, format, func(sess session.Session) error {
		tri := &triangle{}
		defer tri.release()

		compiled, err := frame.Compile(sess, sceneFrame(tri, len(objects)))
		if err != nil {
			return err
		}

		var paused atomic.Bool
		sess.Window().SetKeyDownCallback(func(keyCode uint32) {
			switch {
			case keyCode == uint32(glfw.KeySpace):
				paused.Store(!paused.Load())
			case keyCode >= uint32(glfw.Key1) && keyCode < uint32(glfw.Key1)+uint32(len(objects)):
				obj := objects[keyCode-uint32(glfw.Key1)]
				obj.SetEnabled(!obj.Enabled())
			}
		})

		options := []engine.EngineBuilderOption{
			engine.WithTickRate(120),
			engine.WithProfiling(profile),
			engine.WithMaxFrames(maxFrames),
			engine.WithTickCallback(func(dt float32) {
				if paused.Load() {
					return
				}
				for _, obj := range objects {
					obj.Update(dt)
				}
			}),
		}

		cam := camera.NewCamera(camera.WithLookAt(mgl32.Vec3{0, 0, 3}, mgl32.Vec3{}), camera.WithClipPlanes(0.1, 10))
		e := engine.NewEngine(sess, compiled, func() scene {
			w, h, _ := sess.FrameBufferSize()
			cam.SetViewport(w, h)
			s := scene{
				width:          w,
				height:         h,
				viewProjection: cam.ViewProjectionMatrix(),
				paused:         paused.Load(),
				objects:        make([]objectState, len(objects)),
			}
			for i, obj := range objects {
				s.objects[i] = objectState{model: obj.ModelMatrix(), enabled: obj.Enabled()}
			}
			return s
		}, options...)
		return e.Run()
	})
}

// scene is the world state a frame is run against.
type scene struct {
	width, height  int
	viewProjection mgl32.Mat4
	paused         bool
	objects        []objectState
}

type objectState struct {
	model   mgl32.Mat4
	enabled bool
}

// objectMVP projects the scene onto object i's transform, or nothing when the object is disabled.
func objectMVP(i int) func(scene) (mgl32.Mat4, bool) {
	return func(s scene) (mgl32.Mat4, bool) {
		if i >= len(s.objects) || !s.objects[i].enabled {
			return mgl32.Mat4{}, false
		}
		return s.viewProjection.Mul4(s.objects[i].model), true
	}
}

// sceneFrame clears the screen, then draws every enabled object either lit or dimmed depending on whether
// the animation is paused.
func sceneFrame(tri *triangle, objects int) frame.Fragment[scene] {
	tinted := func(tint mgl32.Vec3) frame.Fragment[scene] {
		return frame.Record(func(r *frame.Recorder[scene]) {
			for i := range objects {
				frame.ProjectOptional(r, objectMVP(i), frame.Record(func(r *frame.Recorder[mgl32.Mat4]) {
					r.Draw(tri.draw(tint))
				}))
			}
		})
	}

	return frame.Record(func(r *frame.Recorder[scene]) {
		r.RegisterIO(r.NewName(), frame.IO[scene]{Init: tri.init})
		r.Draw(clearDraw)

		frame.Branch(r, func(s scene) frame.Either[scene, scene] {
			if s.paused {
				return frame.Right[scene](s)
			}
			return frame.Left[scene, scene](s)
		}, tinted(mgl32.Vec3{1, 0.5, 0.2}), tinted(mgl32.Vec3{0.35, 0.35, 0.4}))
	})
}

func clearDraw(session.Session) (frame.Action[scene], error) {
	return func(s scene) error {
		setViewport(s.width, s.height)
		clearScreen(0.08, 0.08, 0.1)
		return nil
	}, nil
}
