package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldRouteToCtl(t *testing.T) {
	assert.True(t, shouldRouteToCtl([]string{"-dca", "-tickers", "QQQ"}))
	assert.True(t, shouldRouteToCtl([]string{"--backtest"}))
	assert.True(t, shouldRouteToCtl([]string{"-scan=true"}))
	assert.True(t, shouldRouteToCtl([]string{"-rotate"}))
	assert.False(t, shouldRouteToCtl([]string{"-serve", "-config", "dca"}))
	assert.False(t, shouldRouteToCtl(nil))
}

func TestWantsVersion(t *testing.T) {
	assert.True(t, wantsVersion([]string{"--version"}))
	assert.True(t, wantsVersion([]string{"-serve", "-version"}))
	assert.False(t, wantsVersion([]string{"-serve"}))
}
