/*
Package channel provides CSP channels with explicit close and an alt
operator that commits to exactly one ready operation.

| Operation | Channel state            | Result                                                         |
|-----------|--------------------------|----------------------------------------------------------------|
| Take      | Open and Not Empty       | Value                                                          |
|           | Open and Empty           | Block                                                          |
|           | Closed and Not Empty     | Value, until drained                                           |
|           | Closed and Empty         | zero value, false / ErrClosed                                  |
| Put       | Open, room (cap > 0)     | Enqueue, return true                                           |
|           | Open, full (cap > 0)     | Block                                                          |
|           | Open (cap == 0)          | Block until a taker collects the value                        |
|           | Closed                   | false / ErrClosed, never panic                                 |
| TryTake   | Not Empty                | Value, true                                                    |
|           | Empty (open or closed)   | zero value, false; use TryTakeStatus to tell the two apart     |
| TryPut    | Open with room/empty slot| true                                                           |
|           | otherwise                | false, no state change                                         |
| Close     | Open                     | true, wakes every blocked party                                |
|           | Closed                   | false                                                          |

Alt evaluates readiness of every candidate without side effects, picks one
ready candidate (lowest index in priority mode, uniformly at random
otherwise) and performs exactly one take or put.
*/
package channel
