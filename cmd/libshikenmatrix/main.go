// Command libshikenmatrix builds the c-shared library exposing the reporter
// engine to host applications. Build with:
//
//	go build -buildmode=c-shared -o libshikenmatrix.so ./cmd/libshikenmatrix
//
// The hand-maintained shikenmatrix.h in this directory is the public API;
// the exported symbols below must stay in sync with it.
package main

/*
#include <stdlib.h>
#include "shikenmatrix.h"

void call_log_cb(SmLogCallback cb, SmLogLevel level, const char *message,
                 uintptr_t user_data);
void call_window_cb(SmWindowDataCallback cb, const char *title,
                    const char *process_name, uint32_t pid,
                    const uint8_t *icon_data, uintptr_t icon_size,
                    uintptr_t user_data);
void call_media_cb(SmMediaDataCallback cb, const char *title,
                   const char *artist, const char *album, double duration,
                   double elapsed_time, bool playing,
                   const uint8_t *artwork_data, uintptr_t artwork_size,
                   uintptr_t user_data);
*/
import "C"

import (
	"unsafe"

	pointer "github.com/mattn/go-pointer"

	"github.com/shikenmatrix/reporter/internal/config"
	"github.com/shikenmatrix/reporter/internal/event"
	"github.com/shikenmatrix/reporter/internal/logger"
	"github.com/shikenmatrix/reporter/internal/permission"
	"github.com/shikenmatrix/reporter/internal/reporter"
)

func init() {
	logger.Init("info", false)
}

//export sm_check_accessibility_permission
func sm_check_accessibility_permission() C.bool {
	return C.bool(permission.Default.CheckAccessibility())
}

//export sm_request_accessibility_permission
func sm_request_accessibility_permission() C.bool {
	return C.bool(permission.Default.RequestAccessibility())
}

//export sm_check_media_permission
func sm_check_media_permission() C.bool {
	return C.bool(permission.Default.CheckMedia())
}

//export sm_reset_media_permission_check
func sm_reset_media_permission_check() {
	permission.Default.ResetMediaCheck()
}

//export sm_config_load
func sm_config_load() *C.struct_SmConfig {
	mgr, err := config.NewManager("")
	if err != nil {
		logger.WithComponent("ffi").Error().Err(err).Msg("Config load failed")
		return nil
	}
	rc := mgr.GetReporter()

	out := (*C.struct_SmConfig)(C.calloc(1, C.sizeof_struct_SmConfig))
	out.enabled = C.bool(rc.Enabled)
	out.ws_url = C.CString(rc.Endpoint)
	out.token = C.CString(rc.AuthToken)
	out.enable_media_reporting = C.bool(rc.EnableMediaReporting)
	return out
}

//export sm_config_save
func sm_config_save(cfg *C.struct_SmConfig) C.bool {
	if cfg == nil {
		return C.bool(false)
	}
	mgr, err := config.NewManager("")
	if err != nil {
		logger.WithComponent("ffi").Error().Err(err).Msg("Config manager init failed")
		return C.bool(false)
	}
	if err := mgr.SetReporter(goReporterConfig(cfg)); err != nil {
		logger.WithComponent("ffi").Error().Err(err).Msg("Config save failed")
		return C.bool(false)
	}
	return C.bool(true)
}

//export sm_config_free
func sm_config_free(cfg *C.struct_SmConfig) {
	if cfg == nil {
		return
	}
	if cfg.ws_url != nil {
		C.free(unsafe.Pointer(cfg.ws_url))
	}
	if cfg.token != nil {
		C.free(unsafe.Pointer(cfg.token))
	}
	C.free(unsafe.Pointer(cfg))
}

//export sm_string_free
func sm_string_free(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

//export sm_reporter_start
func sm_reporter_start(cfg *C.struct_SmConfig) *C.struct_SmReporter {
	if cfg == nil {
		return nil
	}
	rc := goReporterConfig(cfg)
	h := reporter.Start(&rc)
	if h == nil {
		return nil
	}
	return (*C.struct_SmReporter)(pointer.Save(h))
}

//export sm_reporter_stop
func sm_reporter_stop(handle *C.struct_SmReporter) C.bool {
	if handle == nil {
		return C.bool(false)
	}
	h, ok := pointer.Restore(unsafe.Pointer(handle)).(*reporter.Handle)
	if !ok {
		return C.bool(false)
	}
	if !reporter.Stop(h) {
		return C.bool(false)
	}
	pointer.Unref(unsafe.Pointer(handle))
	return C.bool(true)
}

//export sm_reporter_get_status
func sm_reporter_get_status(handle *C.struct_SmReporter) C.struct_SmStatus {
	_ = handle // status is process-wide
	st := reporter.Status()

	var out C.struct_SmStatus
	out.is_running = C.bool(st.IsRunning)
	out.is_connected = C.bool(st.IsConnected)
	if st.LastError != "" {
		out.last_error = C.CString(st.LastError)
	}
	return out
}

//export sm_reporter_is_running
func sm_reporter_is_running() C.bool {
	return C.bool(reporter.IsRunning())
}

//export sm_reporter_set_log_callback
func sm_reporter_set_log_callback(callback C.SmLogCallback, userData C.uintptr_t) {
	if callback == nil {
		reporter.SetLogCallback(nil, 0)
		return
	}
	reporter.SetLogCallback(func(level event.LogLevel, message string, user uintptr) {
		msg := C.CString(message)
		defer C.free(unsafe.Pointer(msg))
		C.call_log_cb(callback, C.SmLogLevel(level), msg, C.uintptr_t(user))
	}, uintptr(userData))
}

//export sm_reporter_set_window_callback
func sm_reporter_set_window_callback(callback C.SmWindowDataCallback, userData C.uintptr_t) {
	if callback == nil {
		reporter.SetWindowCallback(nil, 0)
		return
	}
	reporter.SetWindowCallback(func(info *event.WindowInfo, user uintptr) {
		title := C.CString(info.Title)
		defer C.free(unsafe.Pointer(title))
		proc := C.CString(info.ProcessName)
		defer C.free(unsafe.Pointer(proc))

		var icon *C.uint8_t
		if len(info.IconData) > 0 {
			icon = (*C.uint8_t)(unsafe.Pointer(&info.IconData[0]))
		}
		C.call_window_cb(callback, title, proc, C.uint32_t(info.PID),
			icon, C.uintptr_t(len(info.IconData)), C.uintptr_t(user))
	}, uintptr(userData))
}

//export sm_reporter_set_media_callback
func sm_reporter_set_media_callback(callback C.SmMediaDataCallback, userData C.uintptr_t) {
	if callback == nil {
		reporter.SetMediaCallback(nil, 0)
		return
	}
	reporter.SetMediaCallback(func(info *event.MediaInfo, user uintptr) {
		title := C.CString(info.Title)
		defer C.free(unsafe.Pointer(title))
		artist := C.CString(info.Artist)
		defer C.free(unsafe.Pointer(artist))
		album := C.CString(info.Album)
		defer C.free(unsafe.Pointer(album))

		var artwork *C.uint8_t
		if len(info.ArtworkData) > 0 {
			artwork = (*C.uint8_t)(unsafe.Pointer(&info.ArtworkData[0]))
		}
		C.call_media_cb(callback, title, artist, album,
			C.double(info.Duration), C.double(info.ElapsedTime),
			C.bool(info.Playing), artwork,
			C.uintptr_t(len(info.ArtworkData)), C.uintptr_t(user))
	}, uintptr(userData))
}

func goReporterConfig(cfg *C.struct_SmConfig) config.ReporterConfig {
	return config.ReporterConfig{
		Enabled:              bool(cfg.enabled),
		Endpoint:             goStringOrEmpty(cfg.ws_url),
		AuthToken:            goStringOrEmpty(cfg.token),
		EnableMediaReporting: bool(cfg.enable_media_reporting),
	}
}

func goStringOrEmpty(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

func main() {}
