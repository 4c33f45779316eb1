package resource_cache

import (
	"encoding/binary"
	"slices"
)

// RenderbufferLayer is the AttachmentKey layer sentinel marking a renderbuffer attachment.
// Any non-negative layer addresses a texture layer.
const RenderbufferLayer = -1

// VertexAttribKey identifies one buffer-backed vertex attribute binding of a vertex array.
type VertexAttribKey struct {
	// Buffer is the buffer object name the attribute reads from.
	Buffer uint32
	// Offset is the byte offset of the first element.
	Offset int
	// Components is the component count per vertex (1 to 4).
	Components int
	// Normalized reports whether integer data is normalized to [0, 1] or [-1, 1].
	Normalized bool
	// Divisor is the instance divisor, 0 for per-vertex attributes.
	Divisor uint32
}

// VAOKey is the ordered attribute list a vertex array object binds. Order is significant.
type VAOKey []VertexAttribKey

// mentions reports whether any attribute reads from buffer name.
func (k VAOKey) mentions(name uint32) bool {
	return slices.ContainsFunc(k, func(a VertexAttribKey) bool { return a.Buffer == name })
}

// canonical encodes the key into a comparable string usable as a map key.
func (k VAOKey) canonical() string {
	buf := make([]byte, 0, len(k)*25)
	for _, a := range k {
		buf = binary.LittleEndian.AppendUint32(buf, a.Buffer)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(a.Offset))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(a.Components))
		buf = append(buf, boolByte(a.Normalized))
		buf = binary.LittleEndian.AppendUint32(buf, a.Divisor)
	}
	return string(buf)
}

// AttachmentKey identifies one image attached to a framebuffer.
type AttachmentKey struct {
	// Name is the texture or renderbuffer object name.
	Name uint32
	// Layer is RenderbufferLayer for renderbuffers, otherwise the texture layer.
	Layer int
	// Level is the texture mip level; ignored for renderbuffers.
	Level int
}

// IsRenderbuffer reports whether the attachment is a renderbuffer rather than a texture.
func (a AttachmentKey) IsRenderbuffer() bool {
	return a.Layer < 0
}

// refersTo matches the object name and its namespace, since texture and renderbuffer names may collide.
func (a AttachmentKey) refersTo(name uint32, isRenderbuffer bool) bool {
	return a.Name == name && a.IsRenderbuffer() == isRenderbuffer
}

func (a AttachmentKey) appendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, a.Name)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(a.Layer)))
	return binary.LittleEndian.AppendUint64(buf, uint64(int64(a.Level)))
}

// FBOKey is the full attachment set of a framebuffer object.
type FBOKey struct {
	// Colors are the color attachments in draw buffer order.
	Colors []AttachmentKey
	// Depth is the depth attachment, nil for none.
	Depth *AttachmentKey
	// Stencil is the stencil attachment, nil for none.
	Stencil *AttachmentKey
}

// mentions reports whether any attachment refers to name in the given namespace.
func (k FBOKey) mentions(name uint32, isRenderbuffer bool) bool {
	for _, c := range k.Colors {
		if c.refersTo(name, isRenderbuffer) {
			return true
		}
	}
	if k.Depth != nil && k.Depth.refersTo(name, isRenderbuffer) {
		return true
	}
	return k.Stencil != nil && k.Stencil.refersTo(name, isRenderbuffer)
}

// canonical encodes the key into a comparable string usable as a map key.
// Optional attachments are tagged so {depth: X} and {stencil: X} never collide.
func (k FBOKey) canonical() string {
	buf := make([]byte, 0, 4+(len(k.Colors)+2)*21)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(k.Colors)))
	for _, c := range k.Colors {
		buf = c.appendTo(buf)
	}
	for _, opt := range []*AttachmentKey{k.Depth, k.Stencil} {
		if opt == nil {
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		buf = opt.appendTo(buf)
	}
	return string(buf)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
