package main

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-frame/engine/frame"
	"github.com/Carmen-Shannon/oxy-frame/engine/resource_cache"
	"github.com/Carmen-Shannon/oxy-frame/engine/session"
	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

const vertexShader = `#version 330 core
layout(location = 0) in vec2 position;
uniform mat4 mvp;
void main() {
	gl_Position = mvp * vec4(position, 0.0, 1.0);
}
` + "\x00"

const fragmentShader = `#version 330 core
uniform vec3 tint;
out vec4 color;
void main() {
	color = vec4(tint, 1.0);
}
` + "\x00"

var vertices = []float32{
	0, 0.6,
	-0.52, -0.3,
	0.52, -0.3,
}

// triangle owns the GPU objects shared by every draw of the demo.
type triangle struct {
	program uint32
	mvp     int32
	tint    int32
	vbo     *session.Handle
}

// init compiles the program and uploads the vertex buffer. Runs once on the render thread at compile time.
func (t *triangle) init(sess session.Session) error {
	program, err := linkProgram(vertexShader, fragmentShader)
	if err != nil {
		return err
	}
	t.program = program
	t.mvp = gl.GetUniformLocation(program, gl.Str("mvp\x00"))
	t.tint = gl.GetUniformLocation(program, gl.Str("tint\x00"))

	var vbo uint32
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	t.vbo = sess.NewHandle(session.HandleBuffer, vbo, func(name uint32) {
		gl.DeleteBuffers(1, &name)
	})
	sess.RegisterFinalizer(t.vbo, func(uint32) {
		gl.DeleteProgram(program)
	})
	return nil
}

// release drops the demo's reference to its GPU objects; deletion is queued on the render thread.
func (t *triangle) release() {
	if t.vbo != nil {
		t.vbo.Release()
		t.vbo = nil
	}
}

// draw returns a factory for one tinted triangle draw reading its transform from the state.
func (t *triangle) draw(tint mgl32.Vec3) frame.DrawcallFactory[mgl32.Mat4] {
	return func(sess session.Session) (frame.Action[mgl32.Mat4], error) {
		key := resource_cache.VAOKey{{Buffer: t.vbo.Name(), Components: 2}}
		vao, err := sess.VertexArray(key, func() (uint32, error) {
			var vao uint32
			gl.GenVertexArrays(1, &vao)
			gl.BindVertexArray(vao)
			gl.BindBuffer(gl.ARRAY_BUFFER, t.vbo.Name())
			gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 0, nil)
			gl.EnableVertexAttribArray(0)
			gl.BindVertexArray(0)
			return vao, nil
		})
		if err != nil {
			return nil, err
		}

		return func(mvp mgl32.Mat4) error {
			gl.UseProgram(t.program)
			gl.UniformMatrix4fv(t.mvp, 1, false, &mvp[0])
			gl.Uniform3f(t.tint, tint[0], tint[1], tint[2])
			gl.BindVertexArray(vao)
			gl.DrawArrays(gl.TRIANGLES, 0, 3)
			gl.BindVertexArray(0)
			return nil
		}, nil
	}
}

// setViewport covers the whole framebuffer; scissoring is always enabled, so the scissor box follows.
func setViewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.Scissor(0, 0, int32(width), int32(height))
}

func clearScreen(r, g, b float32) {
	gl.ClearColor(r, g, b, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func linkProgram(vertexSource, fragmentSource string) (uint32, error) {
	vs, err := compileShader(vertexSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(fragmentSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fs)

	program := gl.CreateProgram()
	gl.AttachShader(program, vs)
	gl.AttachShader(program, fs)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("failed to link program: %s", log)
	}
	return program, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("failed to compile shader: %s", log)
	}
	return shader, nil
}
