package resource_cache

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attrib(buffer uint32) VertexAttribKey {
	return VertexAttribKey{Buffer: buffer, Components: 3}
}

func texture(name uint32) AttachmentKey {
	return AttachmentKey{Name: name, Layer: 0}
}

func renderbuffer(name uint32) AttachmentKey {
	return AttachmentKey{Name: name, Layer: RenderbufferLayer}
}

func TestVAOStoreAndLookup(t *testing.T) {
	c := New()
	key := VAOKey{attrib(1), {Buffer: 2, Offset: 16, Components: 2, Normalized: true, Divisor: 1}}

	_, ok := c.LookupVAO(key)
	assert.False(t, ok)

	c.StoreVAO(key, 10)
	vao, ok := c.LookupVAO(key)
	require.True(t, ok)
	assert.Equal(t, uint32(10), vao)

	// Attribute order is part of the key.
	_, ok = c.LookupVAO(VAOKey{key[1], key[0]})
	assert.False(t, ok)

	// Any field difference is a different key.
	changed := VAOKey{attrib(1), {Buffer: 2, Offset: 16, Components: 2, Normalized: false, Divisor: 1}}
	_, ok = c.LookupVAO(changed)
	assert.False(t, ok)
}

func TestStoredKeysAreCopied(t *testing.T) {
	c := New()
	key := VAOKey{attrib(1)}
	c.StoreVAO(key, 10)
	key[0].Buffer = 99

	c.InvalidateHandle(99, false)
	vao, ok := c.LookupVAO(VAOKey{attrib(1)})
	require.True(t, ok, "mutating the caller's key must not affect the stored entry")
	assert.Equal(t, uint32(10), vao)
}

func TestFBOKeyDistinguishesOptionalAttachments(t *testing.T) {
	c := New()
	d := renderbuffer(5)
	withDepth := FBOKey{Colors: []AttachmentKey{texture(1)}, Depth: &d}
	withStencil := FBOKey{Colors: []AttachmentKey{texture(1)}, Stencil: &d}

	c.StoreFBO(withDepth, 20)
	_, ok := c.LookupFBO(withStencil)
	assert.False(t, ok)

	c.StoreFBO(withStencil, 21)
	fbo, ok := c.LookupFBO(withDepth)
	require.True(t, ok)
	assert.Equal(t, uint32(20), fbo)

	// Mip level and layer participate in the key.
	_, ok = c.LookupFBO(FBOKey{Colors: []AttachmentKey{{Name: 1, Layer: 0, Level: 1}}, Depth: &d})
	assert.False(t, ok)
}

func TestInvalidateMatchesAttachmentNamespace(t *testing.T) {
	c := New()
	rb := renderbuffer(7)
	texKey := FBOKey{Colors: []AttachmentKey{texture(7)}}
	rbKey := FBOKey{Colors: []AttachmentKey{texture(1)}, Depth: &rb}
	c.StoreFBO(texKey, 30)
	c.StoreFBO(rbKey, 31)

	c.InvalidateHandle(7, true)
	_, ok := c.LookupFBO(rbKey)
	assert.False(t, ok, "renderbuffer 7 must purge the entry that attaches it")
	_, ok = c.LookupFBO(texKey)
	assert.True(t, ok, "texture 7 lives in a different namespace than renderbuffer 7")

	c.InvalidateHandle(7, false)
	_, ok = c.LookupFBO(texKey)
	assert.False(t, ok)
}

func TestInvalidateBufferPurgesVAOs(t *testing.T) {
	c := New()
	c.StoreVAO(VAOKey{attrib(1), attrib(2)}, 40)
	c.StoreVAO(VAOKey{attrib(3)}, 41)

	c.InvalidateHandle(2, true)
	vaos, _ := c.Len()
	assert.Equal(t, 2, vaos, "renderbuffers never back vertex arrays")

	c.InvalidateHandle(2, false)
	_, ok := c.LookupVAO(VAOKey{attrib(1), attrib(2)})
	assert.False(t, ok)
	_, ok = c.LookupVAO(VAOKey{attrib(3)})
	assert.True(t, ok)
}

func TestEvictHookReceivesReleasedObjects(t *testing.T) {
	type released struct {
		kind DerivedKind
		name uint32
	}
	var got []released
	c := New(WithCapacity(2), WithEvictHook(func(kind DerivedKind, name uint32) {
		got = append(got, released{kind, name})
	}))

	c.StoreVAO(VAOKey{attrib(1)}, 50)
	c.StoreVAO(VAOKey{attrib(1)}, 51) // replacement releases 50
	c.StoreVAO(VAOKey{attrib(1)}, 51) // same value, nothing released
	c.StoreVAO(VAOKey{attrib(2)}, 52)
	c.StoreVAO(VAOKey{attrib(3)}, 53) // capacity evicts the oldest (51)
	c.StoreFBO(FBOKey{Colors: []AttachmentKey{texture(9)}}, 60)
	c.InvalidateHandle(9, false)

	assert.Equal(t, []released{
		{DerivedVertexArray, 50},
		{DerivedVertexArray, 51},
		{DerivedFramebuffer, 60},
	}, got)
	assert.Equal(t, "framebuffer", DerivedFramebuffer.String())
	assert.Equal(t, "vertex array", DerivedVertexArray.String())
}

func TestLookupRefreshesRecency(t *testing.T) {
	var evicted []uint32
	c := New(WithCapacity(2), WithEvictHook(func(_ DerivedKind, name uint32) {
		evicted = append(evicted, name)
	}))

	c.StoreVAO(VAOKey{attrib(1)}, 10)
	c.StoreVAO(VAOKey{attrib(2)}, 20)
	_, ok := c.LookupVAO(VAOKey{attrib(1)})
	require.True(t, ok)
	c.StoreVAO(VAOKey{attrib(3)}, 30)

	assert.Equal(t, []uint32{20}, evicted)
	_, ok = c.LookupVAO(VAOKey{attrib(1)})
	assert.True(t, ok)
	_, ok = c.LookupVAO(VAOKey{attrib(2)})
	assert.False(t, ok)
}

// After invalidating a name, no lookup may return an entry whose key mentions it.
func TestCacheCoherence(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	c := New()

	var vaoKeys []VAOKey
	var fboKeys []FBOKey
	for range 2000 {
		switch rng.IntN(3) {
		case 0:
			key := make(VAOKey, 1+rng.IntN(3))
			for i := range key {
				key[i] = attrib(uint32(rng.IntN(16)))
			}
			c.StoreVAO(key, rng.Uint32())
			vaoKeys = append(vaoKeys, key)
		case 1:
			key := FBOKey{Colors: make([]AttachmentKey, 1+rng.IntN(3))}
			for i := range key.Colors {
				if rng.IntN(2) == 0 {
					key.Colors[i] = renderbuffer(uint32(rng.IntN(16)))
				} else {
					key.Colors[i] = texture(uint32(rng.IntN(16)))
				}
			}
			c.StoreFBO(key, rng.Uint32())
			fboKeys = append(fboKeys, key)
		default:
			name, isRB := uint32(rng.IntN(16)), rng.IntN(2) == 0
			c.InvalidateHandle(name, isRB)
			if !isRB {
				for _, k := range vaoKeys {
					if k.mentions(name) {
						_, ok := c.LookupVAO(k)
						require.False(t, ok, "stale vertex array for buffer %d", name)
					}
				}
			}
			for _, k := range fboKeys {
				if k.mentions(name, isRB) {
					_, ok := c.LookupFBO(k)
					require.False(t, ok, "stale framebuffer for name %d (renderbuffer=%v)", name, isRB)
				}
			}
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(WithCapacity(64))
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				key := VAOKey{attrib(uint32((g + i) % 32))}
				c.StoreVAO(key, uint32(i))
				c.LookupVAO(key)
				if i%7 == 0 {
					c.InvalidateHandle(uint32(i%32), false)
				}
			}
		}()
	}
	wg.Wait()

	vaos, fbos := c.Len()
	assert.LessOrEqual(t, vaos, 64)
	assert.Zero(t, fbos)
}
