package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sony WH-1000XM5", "sony-wh-1000xm5"},
		{"Bose QuietComfort Ultra", "bose-quietcomfort-ultra"},
		{"Apple AirPods Pro (2nd Gen)", "apple-airpods-pro-2nd-gen"},
		{"Breville Barista_Express", "breville-barista-express"},
		{"Dyson V15 Detect+", "dyson-v15-detect"},
		{"iRobot Roomba j7+", "irobot-roomba-j7"},
		{"Sennheiser  HD 650", "sennheiser--hd-650"},
		{"Crème Brûlée Torch", "crme-brle-torch"},
		{"™®", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestPtr(t *testing.T) {
	p := Ptr(249.99)
	*p = 199.0
	assert.Equal(t, 199.0, *Ptr(*p))
}
